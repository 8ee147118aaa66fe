package internal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	infoBuild    buildFlags
	infoJSON     bool
	infoVariants bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the recipe and the package it would produce",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	infoBuild.register(infoCmd)
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Print as JSON")
	infoCmd.Flags().BoolVar(&infoVariants, "variants", false, "List the package IDs of every linkage and fPIC choice")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd, &infoBuild)
	if err != nil {
		return err
	}
	info, err := p.Info()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if infoVariants {
		m := info.Options.Variants()
		for _, id := range m.Combinations() {
			fmt.Fprintln(out, id)
		}
		return nil
	}
	if infoJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	spec := info.Spec
	fmt.Fprintf(out, "%s %s\n", spec.Name, spec.Version)
	if spec.Description != "" {
		fmt.Fprintf(out, "  %s\n", spec.Description)
	}
	fmt.Fprintf(out, "source:     %s\n", spec.URL())
	fmt.Fprintf(out, "sha256:     %s\n", spec.SourceSHA256)
	for _, r := range spec.Requires {
		fmt.Fprintf(out, "requires:   %s %s\n", r.Name, r.Constraint)
	}
	fmt.Fprintf(out, "package id: %s\n", info.PackageID)
	fmt.Fprintf(out, "strategy:   %s\n", info.Strategy)
	fmt.Fprintf(out, "libs:       %s\n", strings.Join(info.Libs, " "))
	fmt.Fprintf(out, "package:    %s\n", info.PkgDir)
	return nil
}
