package jinja

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Loader resolves a template name to source text. FileSystemLoader,
// DictLoader, and ChainLoader (pkg/loader) are the reference
// implementations; callers may supply their own.
type Loader interface {
	Load(name string) (source string, uptodate func() bool, err error)
}

// FilterContext carries the ambient state a filter may need beyond its
// arguments: whether the current block autoescapes, and the environment
// (for policy lookups like urlize.rel or json.dumps_kwargs).
type FilterContext struct {
	Env        *Environment
	Autoescape bool
}

type FilterFunc func(val interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error)

type TestFunc func(val interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error)

// Environment owns configuration shared across every Template it compiles:
// delimiters, globals, the filter/test registries, the sandbox policy, and
// the compiled-template cache. Safe for concurrent use once constructed.
type Environment struct {
	LexerConfig LexerConfig

	Globals map[string]interface{}
	Filters map[string]FilterFunc
	Tests   map[string]TestFunc

	AutoescapeFn func(name string) bool
	Undefined    UndefinedKind
	Finalize     func(v interface{}) interface{}

	Loader   Loader
	Sandbox  *Sandbox
	Policies Policies
	Logger   *logrus.Logger

	cache *TemplateCache
}

// Policies mirrors spec.md §6's policy table: small tunables a handful of
// filters/tests consult, separated from the rest of the environment so it
// can be loaded wholesale from YAML (see envconfig.go).
type Policies struct {
	TruncateLeeway    int               `yaml:"truncate_leeway"`
	UrlizeRel         string            `yaml:"urlize_rel"`
	UrlizeTargetBlank bool              `yaml:"urlize_target_blank"`
	UrlizeExtraSchemes []string         `yaml:"urlize_extra_schemes"`
	JSONDumpsKwargs   map[string]string `yaml:"json_dumps_kwargs"`
	JSONSortKeys      bool              `yaml:"json_sort_keys"`
	CompareCaseSensitive bool           `yaml:"compare_case_sensitive"`
}

func DefaultPolicies() Policies {
	return Policies{
		TruncateLeeway:       5,
		UrlizeRel:            "noopener",
		JSONSortKeys:         true,
		CompareCaseSensitive: true,
	}
}

// NewEnvironment builds an Environment with the teacher-style defaults:
// discard logger, lenient undefined, autoescape off, standard delimiters.
func NewEnvironment(opts ...EnvOption) *Environment {
	env := &Environment{
		LexerConfig: DefaultLexerConfig(),
		Globals:     map[string]interface{}{},
		Filters:     map[string]FilterFunc{},
		Tests:       map[string]TestFunc{},
		AutoescapeFn: func(string) bool { return false },
		Undefined:   LenientUndefined,
		Policies:    DefaultPolicies(),
		Logger:      discardLogger(),
	}
	registerBuiltinFilters(env)
	registerBuiltinTests(env)
	registerBuiltinGlobals(env)
	env.cache = NewTemplateCache(200, env)
	for _, o := range opts {
		o(env)
	}
	return env
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type EnvOption func(*Environment)

func WithLoader(l Loader) EnvOption { return func(e *Environment) { e.Loader = l } }
func WithAutoescape(f func(name string) bool) EnvOption {
	return func(e *Environment) { e.AutoescapeFn = f }
}
func WithUndefined(k UndefinedKind) EnvOption { return func(e *Environment) { e.Undefined = k } }
func WithLogger(l *logrus.Logger) EnvOption   { return func(e *Environment) { e.Logger = l } }
func WithSandbox(s *Sandbox) EnvOption        { return func(e *Environment) { e.Sandbox = s } }
func WithPolicies(p Policies) EnvOption       { return func(e *Environment) { e.Policies = p } }
func WithTrimBlocks(v bool) EnvOption {
	return func(e *Environment) { e.LexerConfig.TrimBlocks = v }
}
func WithLstripBlocks(v bool) EnvOption {
	return func(e *Environment) { e.LexerConfig.LstripBlocks = v }
}
func WithKeepTrailingNewline(v bool) EnvOption {
	return func(e *Environment) { e.LexerConfig.KeepTrailingNewline = v }
}
func WithLineStatementPrefix(p string) EnvOption {
	return func(e *Environment) { e.LexerConfig.Delimiters.LineStatementPrefix = p }
}
func WithLineCommentPrefix(p string) EnvOption {
	return func(e *Environment) { e.LexerConfig.Delimiters.LineCommentPrefix = p }
}

func (e *Environment) undefinedFor(name, hint string) *Undefined {
	return &Undefined{Kind: e.Undefined, Name: name, Hint: hint}
}

// FromString compiles an ad-hoc template not backed by a loader.
func (e *Environment) FromString(source string) (*Template, error) {
	return compileTemplate(e, "<string>", source)
}

// GetTemplate loads and compiles (or returns the cached compilation of)
// the named template via the environment's Loader.
func (e *Environment) GetTemplate(name string) (*Template, error) {
	if e.Loader == nil {
		return nil, &TemplateNotFound{Name: name}
	}
	return e.cache.GetOrCompile(name)
}

// SelectTemplate tries each name in order, returning the first that loads.
func (e *Environment) SelectTemplate(names []string) (*Template, error) {
	for _, n := range names {
		t, err := e.GetTemplate(n)
		if err == nil {
			return t, nil
		}
	}
	return nil, &TemplatesNotFound{Names: names}
}
