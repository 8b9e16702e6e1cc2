package object

import (
	"fmt"
	"strings"
	"sync"

	"github.com/coregx/coregex"
)

var regexpCache sync.Map // pattern+"/"+flags -> *coregex.Regexp

// CompileRegExp compiles a regex literal body. The i, m and s flags become
// inline modifiers; g and y only affect how matching methods iterate.
// Compiled programs are cached and shared.
func CompileRegExp(pattern, flags string) (*coregex.Regexp, error) {
	key := pattern + "/" + flags
	if re, ok := regexpCache.Load(key); ok {
		return re.(*coregex.Regexp), nil
	}
	var mods strings.Builder
	for _, f := range "ims" {
		if strings.ContainsRune(flags, f) {
			mods.WriteRune(f)
		}
	}
	src := pattern
	if mods.Len() > 0 {
		src = "(?" + mods.String() + ")" + pattern
	}
	re, err := coregex.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression /%s/%s: %w", pattern, flags, err)
	}
	actual, _ := regexpCache.LoadOrStore(key, re)
	return actual.(*coregex.Regexp), nil
}

func NewRegExp(pattern, flags string) (*RegExp, error) {
	re, err := CompileRegExp(pattern, flags)
	if err != nil {
		return nil, err
	}
	return &RegExp{Source: pattern, Flags: flags, Re: re}, nil
}

func (r *RegExp) sticky() bool { return strings.ContainsRune(r.Flags, 'y') }

// Exec finds the next match. Global and sticky expressions search from
// LastIndex and advance it; a miss resets it to zero. The result is an
// array of the match and its groups, or NULL.
func (r *RegExp) Exec(s string) Object {
	start := 0
	if r.Global() || r.sticky() {
		start = r.LastIndex
		if start > len(s) {
			r.LastIndex = 0
			return NULL
		}
	}
	loc := r.Re.FindStringSubmatchIndex(s[start:])
	if loc == nil || (r.sticky() && loc[0] != 0) {
		r.LastIndex = 0
		return NULL
	}
	if r.Global() || r.sticky() {
		r.LastIndex = start + loc[1]
		if loc[1] == loc[0] {
			r.LastIndex++
		}
	}
	groups := make([]Object, 0, len(loc)/2)
	for i := 0; i+1 < len(loc); i += 2 {
		if loc[i] < 0 {
			groups = append(groups, UNDEFINED)
			continue
		}
		groups = append(groups, NewString(s[start+loc[i]:start+loc[i+1]]))
	}
	return &Array{Elements: groups}
}

func (r *RegExp) Test(s string) bool {
	return r.Exec(s) != NULL
}

// Replace substitutes the first match, or every match for a global
// expression. $& names the whole match and $1..$9 the groups.
func (r *RegExp) Replace(s, repl string) string {
	repl = strings.ReplaceAll(repl, "$&", "${0}")
	if r.Global() {
		return r.Re.ReplaceAllString(s, repl)
	}
	loc := r.Re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + r.Re.ReplaceAllString(s[loc[0]:loc[1]], repl) + s[loc[1]:]
}

// ReplaceFunc calls fn for the first match, or every match for a global
// expression.
func (r *RegExp) ReplaceFunc(s string, fn func(string) (string, error)) (string, error) {
	var firstErr error
	done := false
	out := r.Re.ReplaceAllStringFunc(s, func(m string) string {
		if firstErr != nil || (done && !r.Global()) {
			return m
		}
		done = true
		v, err := fn(m)
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	return out, firstErr
}

func (r *RegExp) Split(s string) []string {
	return r.Re.Split(s, -1)
}

// MatchAll returns every match of the expression in s.
func (r *RegExp) MatchAll(s string) []string {
	var matches []string
	for _, loc := range r.Re.FindAllStringIndex(s, -1) {
		matches = append(matches, s[loc[0]:loc[1]])
	}
	return matches
}
