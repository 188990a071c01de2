// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesseract/pkg/ux"
	"github.com/AleutianAI/tesseract/services/grid/layout"
	"github.com/AleutianAI/tesseract/services/grid/store"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage layout snapshots in the local database",
	}

	withStore := func(fn func(cmd *cobra.Command, s *store.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer s.Close()
			return fn(cmd, s, args)
		}
	}

	save := &cobra.Command{
		Use:   "save <name> <layout.yaml>",
		Short: "Store a layout file under name",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, s *store.Store, args []string) error {
			l, err := layout.ReadFile(args[1])
			if err != nil {
				return err
			}
			if err := s.Save(cmd.Context(), args[0], l); err != nil {
				return err
			}
			a.printer.Success("saved %s (%d tiles)", args[0], len(l.Tiles))
			return nil
		}),
	}

	var output string
	load := &cobra.Command{
		Use:   "load <name>",
		Short: "Print a snapshot as YAML, or write it with --output",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, s *store.Store, args []string) error {
			l, err := s.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				return layout.Encode(cmd.OutOrStdout(), l)
			}
			if err := layout.WriteFile(output, l); err != nil {
				return err
			}
			a.printer.Success("wrote %s to %s", args[0], output)
			return nil
		}),
	}
	load.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, s *store.Store, args []string) error {
			infos, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			t := ux.Table{Headers: []string{"NAME", "TILES", "SAVED"}}
			for _, info := range infos {
				t.Rows = append(t.Rows, []string{
					info.Name,
					strconv.Itoa(info.Tiles),
					info.SavedAt.Format("2006-01-02 15:04:05"),
				})
			}
			a.printer.Table(t)
			return nil
		}),
	}

	del := &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a snapshot",
		Args:    cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, s *store.Store, args []string) error {
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printer.Success("deleted %s", args[0])
			return nil
		}),
	}

	cmd.AddCommand(save, load, list, del)
	return cmd
}
