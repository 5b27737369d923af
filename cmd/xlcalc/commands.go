package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/JonMunkholm/xlcalc/internal/cellref"
	"github.com/JonMunkholm/xlcalc/internal/core"
	"github.com/JonMunkholm/xlcalc/internal/docx"
	"github.com/JonMunkholm/xlcalc/internal/engine"
	"github.com/JonMunkholm/xlcalc/internal/logging"
	"github.com/JonMunkholm/xlcalc/internal/store/memory"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	pretty   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "xlcalc",
		Short: "Evaluate spreadsheet workbooks as calculation models",
		Long: `xlcalc writes input values into a workbook, recalculates it and prints
the requested output cells as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")

	rootCmd.AddCommand(newCalcCmd(opts), newFormulasCmd(opts), newCellsCmd(opts), newPlaceholdersCmd(opts))
	return rootCmd
}

// newService runs the calculation service over an in-memory store.
func (o *rootOptions) newService(cmd *cobra.Command) (*core.Service, context.Context, error) {
	logger := logging.New(cmd.ErrOrStderr(), o.logLevel, "text")
	slog.SetDefault(logger)

	store := memory.New()
	svc, err := core.NewService(store, store, engine.NewExcel(), core.Options{CacheSize: 1, MaxConcurrentLoads: 1})
	if err != nil {
		return nil, nil, err
	}
	ctx := core.ContextWithClient(cmd.Context(), "local", "xlcalc")
	return svc, ctx, nil
}

func (o *rootOptions) printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if o.pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newCalcCmd(opts *rootOptions) *cobra.Command {
	var req core.CalculateRequest

	cmd := &cobra.Command{
		Use:   "calc BOOK.xlsx",
		Short: "Calculate output cells for the given inputs",
		Example: `  xlcalc calc book.xlsx \
    --input '[{"sheet":"Sheet1","cell":"A1","value":5}]' \
    --output '[{"sheet":"Sheet1","cell":"B1:B3"}]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := opts.newService(cmd)
			if err != nil {
				return err
			}
			fv, err := svc.Upload(ctx, args[0])
			if err != nil {
				return err
			}

			req.FileName = fv.Name
			resp, err := svc.Calculate(ctx, req)
			if err != nil {
				return err
			}
			if resp.Rendered != nil {
				return opts.printJSON(cmd.OutOrStdout(), resp.Rendered)
			}
			return opts.printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&req.InputCells, "input", "[]", "JSON list of {sheet, cell, value}")
	cmd.Flags().StringVar(&req.OutputCells, "output", "[]", "JSON list of {sheet, cell}")
	cmd.Flags().StringVar(&req.OutputJSON, "json", "", "JSON template for the result")
	cmd.Flags().StringVar(&req.OutputExcel, "excel", "", "Write the workbook with inputs applied to this path")
	cmd.Flags().StringVar(&req.OutputDocx, "docx", "", `Fill a document: {"input_path": ..., "output_path": ...}`)
	return cmd
}

func newFormulasCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "formulas BOOK.xlsx",
		Short: "List formula cells and the cells they read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := opts.newService(cmd)
			if err != nil {
				return err
			}
			fv, err := svc.Upload(ctx, args[0])
			if err != nil {
				return err
			}
			formulas, _, err := svc.Formulas(ctx, fv.Name, fv.Version)
			if err != nil {
				return err
			}
			if formulas == nil {
				formulas = []engine.Formula{}
			}
			return opts.printJSON(cmd.OutOrStdout(), formulas)
		},
	}
}

func newCellsCmd(opts *rootOptions) *cobra.Command {
	var sheet, expr string

	cmd := &cobra.Command{
		Use:   "cells BOOK.xlsx",
		Short: "Print the cell identifiers a range expression expands to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := cellref.Expand(filepath.Base(args[0]), sheet, expr)
			if err != nil {
				return err
			}
			return opts.printJSON(cmd.OutOrStdout(), ids)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "Sheet1", "Sheet name")
	cmd.Flags().StringVar(&expr, "range", "", "Cell, rectangle (A1:B3) or list (A1,C2)")
	_ = cmd.MarkFlagRequired("range")
	return cmd
}

func newPlaceholdersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "placeholders DOC.docx",
		Short: "List the {{key}} markers a document template contains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := docx.Placeholders(args[0])
			if err != nil {
				return err
			}
			return opts.printJSON(cmd.OutOrStdout(), keys)
		},
	}
}
