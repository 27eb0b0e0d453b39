package templating

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
)

// Options selects which templating passes Interpolate performs.
type Options struct {
	Substitutions bool
	Conditions    bool
}

var (
	substitutionRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w.\-]*)\s*\}\}`)
	blockTagRe     = regexp.MustCompile(`\{%-?\s*(if|elsif|else|endif)\b\s*(.*?)\s*-?%\}`)
)

// Engine evaluates substitutions and conditions against a variable set.
// It is stateless and safe for concurrent use.
type Engine struct{}

// NewEngine returns the default templating engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate evaluates a boolean expression. An empty expression is true.
func (e *Engine) Evaluate(_ context.Context, expr string, vars map[string]any) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	tokens, err := tokenize(expr)
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryTemplating, "invalid condition").
			WithContext("expression", expr).
			Build()
	}
	p := &parser{tokens: tokens, vars: vars, expr: expr}
	v, err := p.parseOr()
	if err == nil && p.peek().kind != tokEOF {
		err = fmt.Errorf("unexpected %q in %q", p.peek().text, expr)
	}
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryTemplating, "invalid condition").
			WithContext("expression", expr).
			Build()
	}
	return truthy(v), nil
}

// Interpolate applies conditional blocks (when opts.Conditions) and then
// variable substitutions (when opts.Substitutions). Unknown variables are
// left verbatim. path is only used for error context.
func (e *Engine) Interpolate(ctx context.Context, text string, vars map[string]any, path string, opts Options) (string, error) {
	if !strings.Contains(text, "{") {
		return text, nil
	}
	out := text
	if opts.Conditions && strings.Contains(out, "{%") {
		var err error
		out, err = e.applyConditions(ctx, out, vars)
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryTemplating, "unable to apply conditions").
				WithContext("path", path).
				Build()
		}
	}
	if opts.Substitutions && strings.Contains(out, "{{") {
		out = substitutionRe.ReplaceAllStringFunc(out, func(m string) string {
			key := substitutionRe.FindStringSubmatch(m)[1]
			v, ok := Lookup(vars, key)
			if !ok || v == nil {
				return m
			}
			return fmt.Sprint(v)
		})
	}
	return out, nil
}

type blockBranch struct {
	cond string // empty for else
	body []node
}

type node struct {
	text     string
	branches []blockBranch // non-nil for an if block
}

func (e *Engine) applyConditions(ctx context.Context, text string, vars map[string]any) (string, error) {
	nodes, err := parseBlocks(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := e.render(ctx, &sb, nodes, vars); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (e *Engine) render(ctx context.Context, sb *strings.Builder, nodes []node, vars map[string]any) error {
	for _, n := range nodes {
		if n.branches == nil {
			sb.WriteString(n.text)
			continue
		}
		for _, br := range n.branches {
			ok := true
			if br.cond != "" {
				var err error
				if ok, err = e.Evaluate(ctx, br.cond, vars); err != nil {
					return err
				}
			}
			if ok {
				if err := e.render(ctx, sb, br.body, vars); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

// parseBlocks splits text into literal runs and nested if/elsif/else blocks.
func parseBlocks(text string) ([]node, error) {
	type frame struct {
		parent   *[]node
		sawElse  bool
		branches []blockBranch
	}
	root := []node{}
	cur := &root
	var stack []*frame
	pos := 0
	for _, m := range blockTagRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > pos {
			*cur = append(*cur, node{text: text[pos:m[0]]})
		}
		pos = m[1]
		tag := text[m[2]:m[3]]
		arg := text[m[4]:m[5]]
		switch tag {
		case "if":
			if arg == "" {
				return nil, fmt.Errorf("if without condition")
			}
			f := &frame{parent: cur, branches: []blockBranch{{cond: arg}}}
			stack = append(stack, f)
			cur = &f.branches[0].body
		case "elsif", "else":
			if len(stack) == 0 {
				return nil, fmt.Errorf("%s without if", tag)
			}
			f := stack[len(stack)-1]
			if f.sawElse {
				return nil, fmt.Errorf("%s after else", tag)
			}
			if tag == "elsif" && arg == "" {
				return nil, fmt.Errorf("elsif without condition")
			}
			f.sawElse = tag == "else"
			f.branches = append(f.branches, blockBranch{cond: arg})
			if tag == "else" {
				f.branches[len(f.branches)-1].cond = ""
			}
			cur = &f.branches[len(f.branches)-1].body
		case "endif":
			if len(stack) == 0 {
				return nil, fmt.Errorf("endif without if")
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cur = f.parent
			*cur = append(*cur, node{branches: f.branches})
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed if block")
	}
	if pos < len(text) {
		*cur = append(*cur, node{text: text[pos:]})
	}
	return root, nil
}
