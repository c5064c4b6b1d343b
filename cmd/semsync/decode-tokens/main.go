// Package decode_tokens decodes a captured semantic token stream against
// its document text and prints the resolved spans, for debugging provider
// output outside an editor session.
package decode_tokens

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/semsync/pkg/debug"
	"github.com/walteh/semsync/pkg/hlgroup"
	"github.com/walteh/semsync/pkg/position"
	"github.com/walteh/semsync/pkg/semtok"
)

type Handler struct {
	file     string
	unit     string
	prefix   string
	combined []string
	debug    bool
}

// NewDecodeTokensCommand builds the decode-tokens subcommand. The input
// file is JSON with a "legend" object (tokenTypes, tokenModifiers), the
// raw "data" array, and the document "lines".
func NewDecodeTokensCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "decode-tokens",
		Short: "decode a captured token stream and print resolved spans",
	}

	cmd.Flags().StringVarP(&me.file, "file", "f", "", "token fixture file (JSON)")
	cmd.Flags().StringVar(&me.unit, "unit", "utf16", "provider offset unit: utf8, utf16 or utf32")
	cmd.Flags().StringVar(&me.prefix, "prefix", hlgroup.DefaultPrefix, "highlight group prefix")
	cmd.Flags().StringSliceVar(&me.combined, "combine", nil, "modifiers that combine with existing styling")
	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if me.debug {
			level = zerolog.DebugLevel
		}
		logger := debug.NewConsoleLogger(os.Stderr, level, true)
		ctx := logger.WithContext(cmd.Context())
		return me.Run(ctx, cmd)
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, cmd *cobra.Command) error {
	unit, err := parseUnit(me.unit)
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	data, err := afero.ReadFile(fs, me.file)
	if err != nil {
		return errors.Errorf("reading fixture %q: %w", me.file, err)
	}
	if !gjson.ValidBytes(data) {
		return errors.Errorf("fixture %q is not valid JSON", me.file)
	}

	legend := &semtok.Legend{}
	for _, t := range gjson.GetBytes(data, "legend.tokenTypes").Array() {
		legend.TokenTypes = append(legend.TokenTypes, t.String())
	}
	for _, m := range gjson.GetBytes(data, "legend.tokenModifiers").Array() {
		legend.TokenModifiers = append(legend.TokenModifiers, m.String())
	}
	if len(legend.TokenTypes) == 0 {
		return errors.New("fixture has no legend.tokenTypes")
	}

	var raw semtok.RawTokens
	for _, v := range gjson.GetBytes(data, "data").Array() {
		raw = append(raw, uint32(v.Uint()))
	}

	var lines []string
	for _, l := range gjson.GetBytes(data, "lines").Array() {
		lines = append(lines, l.String())
	}

	zerolog.Ctx(ctx).Debug().
		Int("groups", raw.GroupCount()).
		Int("lines", len(lines)).
		Int("token_types", len(legend.TokenTypes)).
		Msg("decoding fixture")

	dec := &semtok.Decoder{Legend: legend, Unit: unit}
	spans, err := dec.Decode(ctx, raw, func(n int) (string, bool) {
		if n < 0 || n >= len(lines) {
			return "", false
		}
		return lines[n], true
	})
	if err != nil {
		return errors.Errorf("decoding token stream: %w", err)
	}

	resolver := hlgroup.NewResolver(me.prefix, candidateGroups(me.prefix, legend), me.combined)
	for i := range spans {
		spans[i].Group, spans[i].Combine = resolver.Resolve(spans[i].Type, spans[i].Modifiers)
	}

	for _, s := range spans {
		combine := ""
		if s.Combine {
			combine = " (combine)"
		}
		group := s.Group
		if group == "" {
			group = "<unresolved>"
		}
		cmd.Printf("%-14s %-20s %-30s %s%s\n",
			s.Range().String(), s.Type, joinModifiers(s.Modifiers), group, combine)
	}
	return nil
}

// candidateGroups generates every group name the legend could resolve
// to, so the printout shows the most specific composition for each span.
func candidateGroups(prefix string, legend *semtok.Legend) []string {
	var groups []string
	for _, t := range legend.TokenTypes {
		groups = append(groups, hlgroup.GroupName(prefix, t))
		for _, m := range legend.TokenModifiers {
			groups = append(groups, hlgroup.GroupName(prefix, m, t))
		}
	}
	for _, m := range legend.TokenModifiers {
		groups = append(groups, hlgroup.GroupName(prefix, m))
	}
	return groups
}

func joinModifiers(mods []string) string {
	if len(mods) == 0 {
		return "[]"
	}
	out := "["
	for i, m := range mods {
		if i > 0 {
			out += ","
		}
		out += m
	}
	return out + "]"
}

func parseUnit(s string) (position.Unit, error) {
	switch s {
	case "utf8":
		return position.UnitUTF8, nil
	case "utf16":
		return position.UnitUTF16, nil
	case "utf32":
		return position.UnitUTF32, nil
	default:
		return 0, errors.Errorf("unknown offset unit %q, want utf8, utf16 or utf32", s)
	}
}
