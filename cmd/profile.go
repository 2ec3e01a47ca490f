package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileNotes string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <display-name>",
	Short: "Create a new profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Store.CreateProfile(cmd.Context(), args[0], profileNotes)
		if err != nil {
			return err
		}
		fmt.Printf("created profile %s (%s)\n", p.DisplayName, p.ID)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		profiles, err := env.Store.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("no profiles")
			return nil
		}
		for _, p := range profiles {
			fmt.Printf("%s  %s  created %s\n", p.ID, p.DisplayName, p.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <profile-id>",
	Short: "Delete a profile and all of its imported data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeleteProfile(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted profile %s\n", args[0])
		return nil
	},
}

func init() {
	profileCreateCmd.Flags().StringVar(&profileNotes, "notes", "", "free-form notes")
	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
