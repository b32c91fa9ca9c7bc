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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samfreund/musicViz/internal/dataset"
	"github.com/samfreund/musicViz/internal/dedupe"
	"github.com/samfreund/musicViz/internal/event"
	"github.com/samfreund/musicViz/internal/genrecache"
	"github.com/samfreund/musicViz/internal/jellyfin"
	"github.com/samfreund/musicViz/internal/musicbrainz"
	"github.com/samfreund/musicViz/internal/stats"
)

// Skipped-record details are printed up to this many times per run.
const maxSkipDetails = 10

type UpdateConfig struct {
	ServerURL      string
	APIKey         string
	UserID         string
	DatasetPath    string
	LookupGenres   bool
	GenreCachePath string
	Tolerance      string
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetches play history from Jellyfin and writes the stats dataset",
	Long: `Pulls the user's full play history, normalizes and dedupes it, and
writes the aggregate dataset. The dataset file is replaced atomically, so
a failed run leaves any previous dataset untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := UpdateConfig{
			ServerURL:      viper.GetString("server"),
			APIKey:         viper.GetString("api_key"),
			UserID:         viper.GetString("user"),
			DatasetPath:    viper.GetString("dataset"),
			LookupGenres:   viper.GetBool("lookup-genres"),
			GenreCachePath: viper.GetString("genre-cache"),
			Tolerance:      viper.GetString("tolerance"),
		}

		err := updateDataset(config)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	var lookupGenres bool
	updateCmd.Flags().BoolVar(&lookupGenres, "lookup-genres", false, "Look up missing genres on MusicBrainz (slow: rate-limited to 1 request/second)")
	viper.BindPFlag("lookup-genres", updateCmd.Flags().Lookup("lookup-genres"))

	var genreCache string
	updateCmd.Flags().StringVar(&genreCache, "genre-cache", "", "Path to the genre lookup cache (default is $HOME/.musicviz-genres.db)")
	viper.BindPFlag("genre-cache", updateCmd.Flags().Lookup("genre-cache"))

	var tolerance string
	updateCmd.Flags().StringVar(&tolerance, "tolerance", dedupe.DefaultTolerance.String(), "Timestamp tolerance within which same-track events count as one play")
	viper.BindPFlag("tolerance", updateCmd.Flags().Lookup("tolerance"))
}

func updateDataset(config UpdateConfig) error {
	// Configuration problems must surface before any network call.
	if config.ServerURL == "" {
		return fmt.Errorf("Jellyfin server URL is not set (JELLYFIN_URL or --server)")
	}
	if config.APIKey == "" {
		return fmt.Errorf("Jellyfin API key is not set (JELLYFIN_API_KEY or --api_key)")
	}
	if config.UserID == "" {
		return fmt.Errorf("Jellyfin user ID is not set (JELLYFIN_USER_ID or --user)")
	}
	tolerance := dedupe.DefaultTolerance
	if config.Tolerance != "" {
		var err error
		tolerance, err = time.ParseDuration(config.Tolerance)
		if err != nil {
			return fmt.Errorf("invalid tolerance %q: %w", config.Tolerance, err)
		}
	}

	ctx := context.Background()
	fmt.Printf("Connecting to Jellyfin server at %s...\n", config.ServerURL)
	client := jellyfin.New(jellyfin.Config{
		ServerURL: config.ServerURL,
		APIKey:    config.APIKey,
		UserID:    config.UserID,
	})

	deduper := dedupe.New(tolerance)
	normalized := 0
	skipped := 0
	err := client.PlayEvents(ctx, func(raw event.RawEvent) error {
		ev, err := event.Normalize(raw)
		if err != nil {
			var nerr *event.NormalizationError
			if errors.As(err, &nerr) {
				skipped++
				if skipped <= maxSkipDetails {
					fmt.Printf("Skipping record: %v\n", err)
				}
				return nil
			}
			return err
		}
		normalized++
		deduper.Add(ev)
		return nil
	})
	if err != nil {
		return fmt.Errorf("fetching play events: %w", err)
	}

	events := deduper.Events()
	fmt.Printf("Normalized %d events, dropped %d duplicates, skipped %d records\n",
		normalized, deduper.Dropped(), skipped)

	if config.LookupGenres {
		if err := fillMissingGenres(ctx, events, config.GenreCachePath); err != nil {
			return err
		}
	}

	aggregator := stats.NewAggregator()
	for _, e := range events {
		aggregator.Add(e)
	}
	result := aggregator.Result()

	if err := dataset.Write(config.DatasetPath, result); err != nil {
		return err
	}

	fmt.Printf("Wrote %d plays across %d days to %s (%d records skipped)\n",
		result.TotalPlays(), len(result.ActivitySeries), config.DatasetPath, skipped)
	return nil
}

// fillMissingGenres queries MusicBrainz for events Jellyfin had no
// genres for, going through the on-disk cache first. Lookup failures
// are logged and skipped; they never fail the run.
func fillMissingGenres(ctx context.Context, events []event.PlayEvent, cachePath string) error {
	if cachePath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		cachePath = filepath.Join(home, ".musicviz-genres.db")
	}

	cache, err := genrecache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("opening genre cache: %w", err)
	}
	defer cache.Close()

	mb := musicbrainz.New("")
	lookups := 0
	for i := range events {
		e := &events[i]
		if len(e.Genres) > 0 {
			continue
		}

		artist := "Unknown Artist"
		if len(e.Artists) > 0 {
			artist = e.Artists[0]
		}

		genres, ok, err := cache.Get(artist, e.TrackName)
		if err != nil {
			return err
		}
		if !ok {
			genres, err = mb.RecordingGenres(ctx, artist, e.TrackName)
			if err != nil {
				fmt.Printf("Genre lookup failed for %s - %s: %v\n", artist, e.TrackName, err)
				continue
			}
			if err := cache.Put(artist, e.TrackName, genres); err != nil {
				return err
			}
			lookups++
		}
		e.Genres = genres
	}

	fmt.Printf("Looked up %d recordings on MusicBrainz\n", lookups)
	return nil
}
