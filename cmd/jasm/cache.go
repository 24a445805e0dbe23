package main

import (
	"fmt"

	"github.com/colorfulnotion/jasm/log"
	"github.com/colorfulnotion/jasm/storage"
	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	var path string
	open := func(cmd *cobra.Command) (*storage.ResultStore, error) {
		if !cmd.Flags().Changed("path") {
			path = a.cfg.Cache.Path
		}
		if path == "" {
			return nil, fmt.Errorf("no cache path: pass --path or set [cache] path in jasm.toml")
		}
		return storage.OpenResultStore(path)
	}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent result cache",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "cache directory")

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored images and the number of cached results",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			hashes, err := s.Images()
			if err != nil {
				return err
			}
			for _, h := range hashes {
				img, err := s.Image(h)
				if err != nil {
					log.Warn(log.CacheMod, "unreadable image", "hash", h, "err", err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %d bytes  entry %d\n", h, img.Size(), img.Entry())
			}
			n, err := s.Len()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d images, %d results\n", len(hashes), n)
			return nil
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached result",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			n, err := s.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d results\n", n)
			return nil
		},
	}
	cmd.AddCommand(lsCmd, clearCmd)
	return cmd
}
