package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"grabbit/internal/config"
	"grabbit/internal/cookies"
)

// cookiesCmd inspects and clears the saved session jar
var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Inspect or clear the saved session cookies",
}

var cookiesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved cookie jar's size and age",
	RunE:  cookiesStatus,
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved cookie jar, forcing a fresh login",
	RunE:  cookiesClear,
}

func init() {
	cookiesCmd.AddCommand(cookiesStatusCmd)
	cookiesCmd.AddCommand(cookiesClearCmd)
}

func cookieStore() *cookies.Store {
	path := config.Default().CookieFile
	if cfg, err := config.Load(cfgPath); err == nil {
		path = cfg.CookieFile
	}
	return cookies.NewStore(path, logger)
}

func cookiesStatus(cmd *cobra.Command, args []string) error {
	store := cookieStore()
	count := store.Count()
	if count == 0 {
		fmt.Printf("No saved cookies at %s\n", store.Path())
		return nil
	}
	fmt.Printf("%d cookies at %s", count, store.Path())
	if age, ok := store.Age(); ok {
		fmt.Printf(" (saved %s ago)", age.Round(time.Second))
	}
	fmt.Println()
	return nil
}

func cookiesClear(cmd *cobra.Command, args []string) error {
	store := cookieStore()
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	fmt.Printf("Cleared %s\n", store.Path())
	return nil
}
