/*
Copyright 2020 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samfreund/musicViz/internal/dataset"
	"github.com/samfreund/musicViz/internal/stats"
)

var (
	limitArtists int
	limitTracks  int
	limitGenres  int
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Prints top artists, tracks, and genres from the dataset",
	Long:  `Reads a dataset written by 'update' and prints top-N summary tables.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := printTop(os.Stdout, viper.GetString("dataset"))
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(topCmd)
	topCmd.Flags().IntVar(&limitArtists, "artists", 10, "Number of top artists to show")
	topCmd.Flags().IntVar(&limitTracks, "tracks", 10, "Number of top tracks to show")
	topCmd.Flags().IntVar(&limitGenres, "genres", 10, "Number of top genres to show")
}

func printTop(out io.Writer, path string) error {
	result, err := dataset.Read(path)
	if err != nil {
		return fmt.Errorf("run update first: %w", err)
	}

	fmt.Fprint(out, summarizeResult(result, limitArtists, limitTracks, limitGenres))
	return nil
}

// summarizeResult renders the top-N tables as text. The email command
// reuses it for the message body.
func summarizeResult(result *stats.Result, artists, tracks, genres int) string {
	var out strings.Builder

	fmt.Fprintf(&out, "Total plays: %d\n", result.TotalPlays())
	if n := len(result.ActivitySeries); n > 0 {
		fmt.Fprintf(&out, "Period: %s to %s (%d days)\n",
			result.ActivitySeries[0].Date, result.ActivitySeries[n-1].Date, n)
	}
	fmt.Fprintln(&out)

	if artists > 0 {
		fmt.Fprintf(&out, "## Top %d Artists\n", artists)
		rows := [][]string{{"#", "Artist", "Plays", "Time Listened"}}
		for i, entry := range result.TopArtists(artists) {
			rows = append(rows, []string{
				strconv.Itoa(i + 1), entry.Name,
				strconv.FormatInt(entry.PlayCount, 10),
				formatListenTime(entry.TotalDuration),
			})
		}
		out.WriteString(renderTable(rows))
	}

	if tracks > 0 {
		fmt.Fprintf(&out, "## Top %d Tracks\n", tracks)
		rows := [][]string{{"#", "Track", "Artists", "Plays", "Time Listened"}}
		for i, entry := range result.TopTracks(tracks) {
			rows = append(rows, []string{
				strconv.Itoa(i + 1), entry.DisplayName,
				strings.Join(entry.ArtistNames, ", "),
				strconv.FormatInt(entry.PlayCount, 10),
				formatListenTime(entry.TotalDuration),
			})
		}
		out.WriteString(renderTable(rows))
	}

	if genres > 0 {
		fmt.Fprintf(&out, "## Top %d Genres\n", genres)
		rows := [][]string{{"#", "Genre", "Plays", "Time Listened"}}
		for i, entry := range result.TopGenres(genres) {
			rows = append(rows, []string{
				strconv.Itoa(i + 1), entry.Name,
				strconv.FormatInt(entry.PlayCount, 10),
				formatListenTime(entry.TotalDuration),
			})
		}
		out.WriteString(renderTable(rows))
	}

	return out.String()
}

func renderTable(rows [][]string) string {
	out := new(strings.Builder)
	table := tablewriter.NewWriter(out)
	table.Header(rows[0])
	for _, row := range rows[1:] {
		if err := table.Append(row); err != nil {
			return fmt.Sprintf("Error rendering table: %v\n", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Sprintf("Error rendering table: %v\n", err)
	}
	out.WriteString("\n")
	return out.String()
}

func formatListenTime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int64(d.Hours()), int64(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm%02ds", int64(d.Minutes()), seconds%60)
}
