// Package i18n loads the embedded message catalogs and resolves
// localized strings.  Lookups never fail: a missing translation falls back
// to the base locale and finally to the key itself.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// BaseLocale is the source locale every other catalog falls back to.
const BaseLocale = "en"

//go:embed locales/*/*.yaml
var embedded embed.FS

var defaultBundle = mustLoad()

// Default returns the process-wide bundle built from the embedded catalogs.
func Default() *Bundle { return defaultBundle }

// Bundle holds every locale's flat key→message map.  Messages with
// {name} placeholders are also registered as printf formats in an
// x/text catalog, together with the argument order of each format.
type Bundle struct {
	locales map[string]map[string]string
	order   []string
	tags    map[string]language.Tag
	matcher language.Matcher

	cat  *catalog.Builder
	args map[string]map[string][]string // locale → key → placeholder names
}

// Load parses the embedded catalogs.
func Load() (*Bundle, error) { return LoadFS(embedded) }

// LoadFS parses catalogs laid out as locales/<locale>/<namespace>.yaml.
func LoadFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{locales: map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		f, err := parseFile(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		dir := path.Base(path.Dir(p))
		if f.locale != dir {
			return nil, fmt.Errorf("catalog %s: locale %q does not match directory %q", p, f.locale, dir)
		}
		msgs, ok := b.locales[f.locale]
		if !ok {
			msgs = map[string]string{}
			b.locales[f.locale] = msgs
		}
		for k, v := range f.messages {
			if !strings.HasPrefix(k, f.namespace+".") {
				return nil, fmt.Errorf("catalog %s: key %q outside namespace %q", p, k, f.namespace)
			}
			if _, dup := msgs[k]; dup {
				return nil, fmt.Errorf("catalog %s: duplicate key %q", p, k)
			}
			msgs[k] = v
		}
	}
	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s missing", BaseLocale)
	}

	// Base locale first so the matcher prefers it on ties.
	b.order = append(b.order, BaseLocale)
	for l := range b.locales {
		if l != BaseLocale {
			b.order = append(b.order, l)
		}
	}
	sort.Strings(b.order[1:])
	tags := make([]language.Tag, 0, len(b.order))
	for _, l := range b.order {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", l, err)
		}
		tags = append(tags, tag)
	}
	b.matcher = language.NewMatcher(tags)
	if err := b.buildCatalog(tags); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) buildCatalog(tags []language.Tag) error {
	b.tags = make(map[string]language.Tag, len(b.order))
	b.args = make(map[string]map[string][]string, len(b.order))
	b.cat = catalog.NewBuilder(catalog.Fallback(tags[0]))
	for i, l := range b.order {
		b.tags[l] = tags[i]
		b.args[l] = map[string][]string{}
		for key, msg := range b.locales[l] {
			format, names := compileFormat(msg)
			if len(names) == 0 {
				continue
			}
			if err := b.cat.SetString(tags[i], key, format); err != nil {
				return fmt.Errorf("register %s %s: %w", l, key, err)
			}
			b.args[l][key] = names
		}
	}
	return nil
}

// compileFormat turns "{a} of {b}" into "%[1]v of %[2]v" with names in
// argument order.  Literal percent signs are escaped.
func compileFormat(msg string) (string, []string) {
	var sb strings.Builder
	var names []string
	index := map[string]int{}
	for i := 0; i < len(msg); i++ {
		switch msg[i] {
		case '%':
			sb.WriteString("%%")
			continue
		case '{':
			if end := strings.IndexByte(msg[i:], '}'); end > 1 {
				name := msg[i+1 : i+end]
				if !strings.ContainsAny(name, "{ ") {
					n, ok := index[name]
					if !ok {
						names = append(names, name)
						n = len(names)
						index[name] = n
					}
					fmt.Fprintf(&sb, "%%[%d]v", n)
					i += end
					continue
				}
			}
		}
		sb.WriteByte(msg[i])
	}
	return sb.String(), names
}

// Locales returns the available locales, base locale first.
func (b *Bundle) Locales() []string {
	return append([]string(nil), b.order...)
}

// Has reports whether locale is available verbatim.
func (b *Bundle) Has(locale string) bool {
	_, ok := b.locales[locale]
	return ok
}

// Match picks the best available locale for the given preferences.  Each
// value may be a plain tag ("de-AT") or an Accept-Language header.  Values
// that do not parse are skipped; no match yields BaseLocale.
func (b *Bundle) Match(prefs ...string) string {
	var tags []language.Tag
	for _, p := range prefs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return BaseLocale
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(b.order) {
		return BaseLocale
	}
	return b.order[idx]
}

// T returns the message for key in locale.
func (b *Bundle) T(locale, key string) string {
	if msgs, ok := b.locales[locale]; ok {
		if v, ok := msgs[key]; ok {
			return v
		}
	}
	if v, ok := b.locales[BaseLocale][key]; ok {
		return v
	}
	return key
}

// Tf is T with {name} placeholders filled from vars, formatted for the
// locale the message resolved to.  A placeholder missing from vars is
// left as written.
func (b *Bundle) Tf(locale, key string, vars map[string]any) string {
	resolved := locale
	if _, ok := b.locales[resolved][key]; !ok {
		resolved = BaseLocale
	}
	names, ok := b.args[resolved][key]
	if !ok {
		return b.T(locale, key)
	}
	args := make([]any, len(names))
	for i, n := range names {
		if v, ok := vars[n]; ok {
			args[i] = v
		} else {
			args[i] = "{" + n + "}"
		}
	}
	return message.NewPrinter(b.tags[resolved], message.Catalog(b.cat)).Sprintf(key, args...)
}

// KeyOf finds the key under prefix whose message equals value in any
// locale.  The returned key has prefix stripped.
func (b *Bundle) KeyOf(prefix, value string) (string, bool) {
	if value == "" {
		return "", false
	}
	for _, l := range b.order {
		for k, v := range b.locales[l] {
			if v == value && strings.HasPrefix(k, prefix) {
				return strings.TrimPrefix(k, prefix), true
			}
		}
	}
	return "", false
}

// Canonical maps a localized value under prefix back to its base-locale
// message.  Values that match nothing are returned unchanged.
func (b *Bundle) Canonical(prefix, value string) string {
	key, ok := b.KeyOf(prefix, value)
	if !ok {
		return value
	}
	return b.T(BaseLocale, prefix+key)
}

func mustLoad() *Bundle {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

type catalogFile struct {
	locale    string
	namespace string
	messages  map[string]string
}

// parseFile reads the small subset of YAML the catalogs use: quoted
// locale and namespace headers followed by a messages block of quoted
// "key": "value" pairs.
func parseFile(data string) (catalogFile, error) {
	out := catalogFile{messages: map[string]string{}}
	inMessages := false
	for n, raw := range strings.Split(data, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(line, "locale:"):
			out.locale, err = strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "locale:")))
		case strings.HasPrefix(line, "namespace:"):
			out.namespace, err = strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "namespace:")))
		case line == "messages:":
			inMessages = true
		case inMessages:
			var k, v string
			k, v, err = parseEntry(line)
			out.messages[k] = v
		default:
			err = fmt.Errorf("unexpected content")
		}
		if err != nil {
			return catalogFile{}, fmt.Errorf("line %d: %w", n+1, err)
		}
	}
	if out.locale == "" || out.namespace == "" {
		return catalogFile{}, fmt.Errorf("locale and namespace are required")
	}
	if len(out.messages) == 0 {
		return catalogFile{}, fmt.Errorf("no messages")
	}
	return out, nil
}

func parseEntry(line string) (string, string, error) {
	if !strings.HasPrefix(line, `"`) {
		return "", "", fmt.Errorf("expected quoted key")
	}
	end := -1
	for i := 1; i < len(line); i++ {
		if line[i] == '\\' {
			i++
			continue
		}
		if line[i] == '"' {
			end = i
			break
		}
	}
	if end < 0 {
		return "", "", fmt.Errorf("unterminated key")
	}
	key, err := strconv.Unquote(line[:end+1])
	if err != nil {
		return "", "", err
	}
	rest := strings.TrimSpace(line[end+1:])
	if !strings.HasPrefix(rest, ":") {
		return "", "", fmt.Errorf("missing ':' after key")
	}
	val, err := strconv.Unquote(strings.TrimSpace(rest[1:]))
	if err != nil {
		return "", "", err
	}
	return key, val, nil
}
