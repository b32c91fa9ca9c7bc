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
	"html"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samfreund/musicViz/internal/dataset"
)

type SendEmailConfig struct {
	DatasetPath    string
	From           string
	To             string
	SendgridAPIKey string
	DryRun         bool
}

var emailCmd = &cobra.Command{
	Use:   "email <address>",
	Short: "Emails the listening summary",
	Long:  `Sends the top-N summary of the current dataset to the given address.`,
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("from") == "" {
			return fmt.Errorf("required flag(s) \"from\" not set")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		config := SendEmailConfig{
			DatasetPath:    viper.GetString("dataset"),
			From:           viper.GetString("from"),
			To:             args[0],
			SendgridAPIKey: viper.GetString("sendgrid_api_key"),
			DryRun:         viper.GetBool("dryRun"),
		}
		err := sendSummaryEmail(config)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(emailCmd)

	var dryRun bool
	emailCmd.Flags().BoolVarP(&dryRun, "dry_run", "n", false, "When true, just print instead of emailing")
	viper.BindPFlag("dryRun", emailCmd.Flags().Lookup("dry_run"))

	var from string
	emailCmd.Flags().StringVar(&from, "from", "", "From email address")
	viper.BindPFlag("from", emailCmd.Flags().Lookup("from"))

	var sendgridAPIKey string
	emailCmd.Flags().StringVar(&sendgridAPIKey, "sendgrid_api_key", "", "SendGrid API key")
	viper.BindPFlag("sendgrid_api_key", emailCmd.Flags().Lookup("sendgrid_api_key"))
}

func sendSummaryEmail(config SendEmailConfig) error {
	result, err := dataset.Read(config.DatasetPath)
	if err != nil {
		return fmt.Errorf("run update first: %w", err)
	}

	subject := fmt.Sprintf("Listening summary: %d plays", result.TotalPlays())
	body := summarizeResult(result, limitArtists, limitTracks, limitGenres)

	if config.DryRun {
		fmt.Printf("Would have sent email:\nsubject: %s\n%s\n", subject, body)
		return nil
	}

	if config.SendgridAPIKey == "" {
		return fmt.Errorf("sendgrid_api_key must be set in order to send emails")
	}

	from := mail.NewEmail("musicviz", config.From)
	to := mail.NewEmail(config.To, config.To)
	htmlBody := "<pre>" + html.EscapeString(body) + "</pre>"
	message := mail.NewSingleEmail(from, subject, to, body, htmlBody)
	client := sendgrid.NewSendClient(config.SendgridAPIKey)
	if _, err := client.Send(message); err != nil {
		return fmt.Errorf("sendEmail: %w", err)
	}

	fmt.Printf("Sent summary to %s\n", config.To)
	return nil
}
