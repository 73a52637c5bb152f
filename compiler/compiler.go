// Package compiler wires the pipeline's phases into a single Compile
// entry point: lex, seed the built-in suite, parse (both passes), run
// the fixed-order AST validators, lower to HIR, monomorphize, and build
// MIR. The CLI launcher, file I/O, and code generation that would
// consume a Result are someone else's package.
package compiler

import (
	"log/slog"

	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/hir"
	"github.com/jimd-den/onu-prog/internal/lexer"
	"github.com/jimd-den/onu-prog/internal/mir"
	"github.com/jimd-den/onu-prog/internal/mono"
	"github.com/jimd-den/onu-prog/internal/parser"
	"github.com/jimd-den/onu-prog/internal/registry"
	"github.com/jimd-den/onu-prog/internal/registry/builtins"
	"github.com/jimd-den/onu-prog/internal/validate"
)

// Option configures a Config.
type Option func(*Config)

// Config holds the knobs a Compile call honors.
type Config struct {
	log             *slog.Logger
	maxDepth        int
	skipBuiltins    bool
	stopAfterParse  bool
	stopAfterVerify bool
}

// WithLogger attaches a tracing logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.log = l }
}

// WithMaxDepth overrides the parser's KISS recursion bound.
func WithMaxDepth(n int) Option {
	return func(c *Config) { c.maxDepth = n }
}

// WithoutBuiltins skips seeding the embedded "core" suite, for tests that
// want a bare registry.
func WithoutBuiltins() Option {
	return func(c *Config) { c.skipBuiltins = true }
}

// StopAfterParse halts the pipeline once the AST is built, before
// validation. Useful for parser-only tests.
func StopAfterParse() Option {
	return func(c *Config) { c.stopAfterParse = true }
}

// StopAfterVerify halts the pipeline once validators pass, before HIR
// lowering. Useful for validator-only tests.
func StopAfterVerify() Option {
	return func(c *Config) { c.stopAfterVerify = true }
}

func newConfig(opts ...Option) *Config {
	c := &Config{log: slog.Default(), maxDepth: 16}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result is everything a completed Compile call produced.
type Result struct {
	AST       []ast.Discourse
	HIR       []hir.Discourse
	MIR       []*mir.Function
	Registry  *registry.Registry
}

// Compile runs the full pipeline over src and returns the accumulated
// intermediate representations, or the first diag.Diagnostic any phase
// raised.
func Compile(src string, opts ...Option) (*Result, error) {
	cfg := newConfig(opts...)
	reg := registry.New()

	if !cfg.skipBuiltins {
		if err := builtins.Seed(reg); err != nil {
			return nil, err
		}
	}

	tokens := lexer.All(src, cfg.log)
	if n := len(tokens); n > 0 && tokens[n-1].Kind == lexer.KindIllegal {
		t := tokens[n-1]
		return nil, diag.Parse(t.Span, "the source contains a character the lexer does not recognize")
	}

	units, err := parser.ParseProgram(tokens, reg,
		parser.WithMaxDepth(cfg.maxDepth),
		parser.WithLogger(cfg.log),
	)
	if err != nil {
		return nil, err
	}
	cfg.log.Debug("parsed discourse", "units", len(units))
	if cfg.stopAfterParse {
		return &Result{AST: units, Registry: reg}, nil
	}

	if err := validate.RunAll(reg, units); err != nil {
		return nil, err
	}
	cfg.log.Debug("validated discourse")
	if cfg.stopAfterVerify {
		return &Result{AST: units, Registry: reg}, nil
	}

	lowered, err := hir.Lower(units)
	if err != nil {
		return nil, err
	}
	cfg.log.Debug("lowered to hir", "units", len(lowered))

	specialized, err := mono.Run(lowered)
	if err != nil {
		return nil, err
	}
	cfg.log.Debug("monomorphized", "units", len(specialized))

	fns, err := mir.Build(specialized)
	if err != nil {
		return nil, err
	}
	cfg.log.Debug("built mir", "functions", len(fns))

	return &Result{AST: units, HIR: specialized, MIR: fns, Registry: reg}, nil
}
