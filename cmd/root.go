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
	"os"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string
var serverURL string
var apiKey string
var userID string
var datasetPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "musicviz",
	Short: "Builds listening statistics from Jellyfin play history",
	Long: `Fetches a user's play history from a Jellyfin server and derives the
aggregate dataset (top artists, tracks, genres, daily activity) that the
chart frontend renders.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default is $HOME/.musicviz.yaml)")

	rootCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8096", "Jellyfin server URL")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindEnv("server", "JELLYFIN_URL")

	rootCmd.PersistentFlags().StringVar(
		&apiKey, "api_key", "", "Jellyfin API key")
	viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api_key"))
	viper.BindEnv("api_key", "JELLYFIN_API_KEY")

	rootCmd.PersistentFlags().StringVarP(
		&userID, "user", "u", "", "Jellyfin user ID to act on")
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	viper.BindEnv("user", "JELLYFIN_USER_ID")

	rootCmd.PersistentFlags().StringVarP(
		&datasetPath, "dataset", "d", "out.json", "Path to the stats dataset file")
	viper.BindPFlag("dataset", rootCmd.PersistentFlags().Lookup("dataset"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A .env in the working directory is the easiest way to supply the
	// Jellyfin credentials; its absence is fine.
	godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".musicviz" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".musicviz")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// See https://github.com/spf13/viper/pull/852
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if viper.IsSet(f.Name) && viper.GetString(f.Name) != "" {
			rootCmd.Flags().Set(f.Name, viper.GetString(f.Name))
		}
	})
}
