package jinja

import (
	"encoding/json"
	"fmt"
	"html"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// registerBuiltinFilters extends the teacher's GlobalFilters map (which
// covered default/join/upper/lower/capitalize/replace/trim/list/escape)
// with the full set spec.md §4.6 names.
func registerBuiltinFilters(env *Environment) {
	f := env.Filters
	f["default"] = filterDefault
	f["d"] = filterDefault
	f["join"] = filterJoin
	f["upper"] = filterUpper
	f["lower"] = filterLower
	f["capitalize"] = filterCapitalize
	f["title"] = filterTitle
	f["replace"] = filterReplace
	f["trim"] = filterTrim
	f["list"] = filterList
	f["escape"] = filterEscape
	f["e"] = filterEscape
	f["forceescape"] = filterForceescape
	f["safe"] = filterSafe
	f["random"] = filterRandom
	f["length"] = filterLength
	f["count"] = filterLength
	f["first"] = filterFirst
	f["last"] = filterLast
	f["sort"] = filterSort
	f["reverse"] = filterReverse
	f["unique"] = filterUnique
	f["sum"] = filterSum
	f["min"] = filterMin
	f["max"] = filterMax
	f["abs"] = filterAbs
	f["round"] = filterRound
	f["int"] = filterInt
	f["float"] = filterFloat
	f["string"] = filterString
	f["truncate"] = filterTruncate
	f["wordcount"] = filterWordcount
	f["wordwrap"] = filterWordwrap
	f["indent"] = filterIndent
	f["striptags"] = filterStriptags
	f["urlize"] = filterUrlize
	f["urlencode"] = filterUrlencode
	f["tojson"] = filterTojson
	f["format"] = filterFormat
	f["dictsort"] = filterDictsort
	f["groupby"] = filterGroupby
	f["map"] = filterMap
	f["select"] = filterSelect
	f["reject"] = filterReject
	f["selectattr"] = filterSelectattr
	f["rejectattr"] = filterRejectattr
	f["batch"] = filterBatch
	f["slice"] = filterSliceFilter
	f["pprint"] = filterPprint
	f["center"] = filterCenter
	f["filesizeformat"] = filterFilesizeformat
	f["items"] = filterItems
	f["attr"] = filterAttr
	f["xmlattr"] = filterXmlattr
}

func filterDefault(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	boolean := false
	if len(args) > 1 {
		boolean = IsTruthy(args[1])
	}
	if bv, ok := kwargs["boolean"]; ok {
		boolean = IsTruthy(bv)
	}
	isUndef := false
	if _, ok := v.(*Undefined); ok {
		isUndef = true
	}
	if isUndef || (boolean && !IsTruthy(v)) {
		if len(args) > 0 {
			return args[0], nil
		}
		return "", nil
	}
	return v, nil
}

func filterJoin(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	sep := ""
	if len(args) > 0 {
		sep = ToString(args[0])
	}
	items, _ := ToSlice(v)
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = ToString(it)
	}
	return strings.Join(parts, sep), nil
}

func filterUpper(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return strings.ToUpper(ToString(v)), nil
}

func filterLower(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return strings.ToLower(ToString(v)), nil
}

func filterCapitalize(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	s := ToString(v)
	if s == "" {
		return s, nil
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r), nil
}

func filterTitle(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return strings.Title(strings.ToLower(ToString(v))), nil
}

func filterReplace(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("replace requires 2 arguments")
	}
	count := -1
	if len(args) > 2 {
		count = int(toInt64(args[2]))
	}
	return strings.Replace(ToString(v), ToString(args[0]), ToString(args[1]), count), nil
}

func filterTrim(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	cutset := " \t\n\r"
	if len(args) > 0 {
		cutset = ToString(args[0])
	}
	return strings.Trim(ToString(v), cutset), nil
}

func filterList(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	items, ok := ToSlice(v)
	if !ok {
		if m, ok := ToMap(v); ok {
			items, _ := iterableItems(m)
			return items, nil
		}
		return nil, fmt.Errorf("%T is not iterable", v)
	}
	return items, nil
}

func filterEscape(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return Escape(v), nil
}

func filterSafe(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return MarkSafe(v), nil
}

// filterForceescape re-escapes a value's content even when it is already
// Safe, unlike escape/e which treat an existing Safe as a no-op.
func filterForceescape(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return Safe(escapeReplacer.Replace(ToString(v))), nil
}

func filterRandom(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	items, ok := ToSlice(v)
	if !ok || len(items) == 0 {
		return &Undefined{Kind: fc.Env.Undefined, Hint: "the sequence was empty"}, nil
	}
	return items[rand.Intn(len(items))], nil
}

func filterLength(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if s, ok := v.(string); ok {
		return int64(len([]rune(s))), nil
	}
	if m, ok := ToMap(v); ok {
		return int64(len(m)), nil
	}
	if items, ok := ToSlice(v); ok {
		return int64(len(items)), nil
	}
	return int64(0), nil
}

func filterFirst(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	items, ok := ToSlice(v)
	if !ok || len(items) == 0 {
		return &Undefined{Kind: fc.Env.Undefined}, nil
	}
	return items[0], nil
}

func filterLast(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	items, ok := ToSlice(v)
	if !ok || len(items) == 0 {
		return &Undefined{Kind: fc.Env.Undefined}, nil
	}
	return items[len(items)-1], nil
}

func filterSort(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	items, _ := ToSlice(v)
	out := append([]interface{}{}, items...)
	reverse := IsTruthy(kwargs["reverse"])
	caseSensitive := IsTruthy(kwargs["case_sensitive"])
	var attr string
	if a, ok := kwargs["attribute"]; ok {
		attr = ToString(a)
	}
	key := func(x interface{}) interface{} {
		if attr != "" {
			return GetAttr(x, attr, fc.Env)
		}
		return x
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(out[i]), key(out[j])
		if as, ok := stringLike(a); ok {
			bs, _ := stringLike(b)
			if !caseSensitive {
				as, bs = strings.ToLower(as), strings.ToLower(bs)
			}
			if reverse {
				return as > bs
			}
			return as < bs
		}
		af, _ := ToFloat(a)
		bf, _ := ToFloat(b)
		if reverse {
			return af > bf
		}
		return af < bf
	})
	return out, nil
}

func filterReverse(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if s, ok := v.(string); ok {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r), nil
	}
	items, _ := ToSlice(v)
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out, nil
}

func filterUnique(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	items, _ := ToSlice(v)
	var out []interface{}
	for _, it := range items {
		dup := false
		for _, seen := range out {
			if Equal(seen, it) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return out, nil
}

func filterSum(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	items, _ := ToSlice(v)
	var attr string
	if a, ok := kwargs["attribute"]; ok {
		attr = ToString(a)
	}
	start := 0.0
	if s, ok := kwargs["start"]; ok {
		start, _ = ToFloat(s)
	}
	total := start
	for _, it := range items {
		val := it
		if attr != "" {
			val = GetAttr(it, attr, fc.Env)
		}
		f, _ := ToFloat(val)
		total += f
	}
	if total == float64(int64(total)) {
		return int64(total), nil
	}
	return total, nil
}

func filterMin(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return extremum(v, fc, false)
}

func filterMax(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return extremum(v, fc, true)
}

func extremum(v interface{}, fc *FilterContext, max bool) (interface{}, error) {
	items, _ := ToSlice(v)
	if len(items) == 0 {
		return &Undefined{Kind: fc.Env.Undefined}, nil
	}
	best := items[0]
	for _, it := range items[1:] {
		bf, _ := ToFloat(best)
		f, ok := ToFloat(it)
		if ok && ((max && f > bf) || (!max && f < bf)) {
			best = it
		}
	}
	return best, nil
}

func filterAbs(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	f, _ := ToFloat(v)
	if f < 0 {
		f = -f
	}
	if isInt(v) {
		return int64(f), nil
	}
	return f, nil
}

func filterRound(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	prec := 0
	if len(args) > 0 {
		prec = int(toInt64(args[0]))
	}
	method := "common"
	if len(args) > 1 {
		method = ToString(args[1])
	}
	f, _ := ToFloat(v)
	mul := pow10(prec)
	switch method {
	case "ceil":
		return ceilDiv(f, mul), nil
	case "floor":
		return floorDiv(f, mul), nil
	default:
		return roundHalfUp(f, mul), nil
	}
}

func pow10(n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= 10
	}
	for i := 0; i > n; i-- {
		r /= 10
	}
	return r
}

func roundHalfUp(f, mul float64) float64 {
	x := f * mul
	if x >= 0 {
		return float64(int64(x+0.5)) / mul
	}
	return float64(int64(x-0.5)) / mul
}

func ceilDiv(f, mul float64) float64 {
	x := f * mul
	i := int64(x)
	if float64(i) < x {
		i++
	}
	return float64(i) / mul
}

func floorDiv(f, mul float64) float64 {
	x := f * mul
	i := int64(x)
	if float64(i) > x {
		i--
	}
	return float64(i) / mul
}

func filterInt(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if f, ok := ToFloat(v); ok {
		return int64(f), nil
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int64(f), nil
		}
	}
	if len(args) > 0 {
		return args[0], nil
	}
	return int64(0), nil
}

func filterFloat(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if f, ok := ToFloat(v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}
	if len(args) > 0 {
		return args[0], nil
	}
	return 0.0, nil
}

func filterString(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return ToString(v), nil
}

func filterTruncate(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	s := ToString(v)
	length := 255
	if len(args) > 0 {
		length = int(toInt64(args[0]))
	}
	killwords := false
	if len(args) > 1 {
		killwords = IsTruthy(args[1])
	}
	end := "..."
	if len(args) > 2 {
		end = ToString(args[2])
	}
	leeway := fc.Env.Policies.TruncateLeeway
	if len(args) > 3 {
		leeway = int(toInt64(args[3]))
	}
	runes := []rune(s)
	if len(runes) <= length+leeway {
		return s, nil
	}
	cut := length - len([]rune(end))
	if cut < 0 {
		cut = 0
	}
	truncated := runes[:cut]
	if !killwords {
		if idx := strings.LastIndexAny(string(truncated), " \t\n"); idx != -1 {
			truncated = []rune(string(truncated)[:idx])
		}
	}
	return string(truncated) + end, nil
}

func filterWordcount(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return int64(len(strings.Fields(ToString(v)))), nil
}

func filterWordwrap(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	width := 79
	if len(args) > 0 {
		width = int(toInt64(args[0]))
	}
	words := strings.Fields(ToString(v))
	var lines []string
	cur := ""
	for _, w := range words {
		if cur == "" {
			cur = w
		} else if len(cur)+1+len(w) <= width {
			cur += " " + w
		} else {
			lines = append(lines, cur)
			cur = w
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return strings.Join(lines, "\n"), nil
}

func filterIndent(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	width := 4
	if len(args) > 0 {
		width = int(toInt64(args[0]))
	}
	first := false
	if len(args) > 1 {
		first = IsTruthy(args[1])
	}
	pad := strings.Repeat(" ", width)
	lines := strings.Split(ToString(v), "\n")
	for i := range lines {
		if i == 0 && !first {
			continue
		}
		if lines[i] != "" {
			lines[i] = pad + lines[i]
		}
	}
	return strings.Join(lines, "\n"), nil
}

func filterStriptags(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	s := ToString(v)
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(sb.String())), " "), nil
}

func filterUrlize(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	s := ToString(v)
	rel := fc.Env.Policies.UrlizeRel
	words := strings.Fields(s)
	for i, w := range words {
		if strings.HasPrefix(w, "http://") || strings.HasPrefix(w, "https://") || strings.HasPrefix(w, "www.") {
			href := w
			if strings.HasPrefix(href, "www.") {
				href = "https://" + href
			}
			attrs := ""
			if rel != "" {
				attrs = fmt.Sprintf(` rel="%s"`, rel)
			}
			words[i] = fmt.Sprintf(`<a href="%s"%s>%s</a>`, html.EscapeString(href), attrs, html.EscapeString(w))
		}
	}
	return Safe(strings.Join(words, " ")), nil
}

func filterUrlencode(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if m, ok := ToMap(v); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			parts = append(parts, urlEscape(k)+"="+urlEscape(ToString(m[k])))
		}
		return strings.Join(parts, "&"), nil
	}
	return urlEscape(ToString(v)), nil
}

func urlEscape(s string) string {
	var sb strings.Builder
	for _, b := range []byte(s) {
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-' || b == '_' || b == '.' || b == '~' {
			sb.WriteByte(b)
		} else {
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}

func filterTojson(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	b, err := json.Marshal(jsonify(v))
	if err != nil {
		return nil, err
	}
	return Safe(b), nil
}

func jsonify(v interface{}) interface{} {
	switch t := v.(type) {
	case Safe:
		return string(t)
	case *Undefined:
		return nil
	case *Namespace:
		return t.Attrs
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, x := range t {
			out[i] = jsonify(x)
		}
		return out
	case map[string]interface{}:
		out := map[string]interface{}{}
		for k, x := range t {
			out[k] = jsonify(x)
		}
		return out
	}
	return v
}

func filterFormat(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	format := ToString(v)
	if fc.Env.Sandbox != nil {
		if err := fc.Env.Sandbox.CheckFormatString(format); err != nil {
			return nil, err
		}
	}
	anyArgs := make([]interface{}, len(args))
	for i, a := range args {
		anyArgs[i] = a
	}
	return fmt.Sprintf(format, anyArgs...), nil
}

func filterDictsort(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	m, _ := ToMap(v)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	byValue := len(args) > 0 && ToString(args[0]) == "value"
	if byValue {
		sort.SliceStable(keys, func(i, j int) bool {
			as, _ := stringLike(m[keys[i]])
			bs, _ := stringLike(m[keys[j]])
			return as < bs
		})
	} else {
		sort.Strings(keys)
	}
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = []interface{}{k, m[k]}
	}
	return out, nil
}

func filterGroupby(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("groupby requires an attribute name")
	}
	attr := ToString(args[0])
	items, _ := ToSlice(v)
	groups := map[string][]interface{}{}
	var order []string
	for _, it := range items {
		key := ToString(GetAttr(it, attr, fc.Env))
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], it)
	}
	sort.Strings(order)
	out := make([]interface{}, len(order))
	for i, k := range order {
		out[i] = map[string]interface{}{"grouper": k, "list": groups[k]}
	}
	return out, nil
}

func filterMap(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	items, _ := ToSlice(v)
	if attrName, ok := kwargs["attribute"]; ok {
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = GetAttr(it, ToString(attrName), fc.Env)
		}
		return out, nil
	}
	if len(args) == 0 {
		return items, nil
	}
	filterName := ToString(args[0])
	fn, ok := fc.Env.Filters[filterName]
	if !ok {
		return nil, fmt.Errorf("no filter named %q", filterName)
	}
	rest := args[1:]
	out := make([]interface{}, len(items))
	for i, it := range items {
		r, err := fn(it, rest, nil, fc)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func filterSelect(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return selectReject(v, args, fc, true)
}

func filterReject(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return selectReject(v, args, fc, false)
}

func selectReject(v interface{}, args []interface{}, fc *FilterContext, want bool) (interface{}, error) {
	items, _ := ToSlice(v)
	var out []interface{}
	for _, it := range items {
		ok := IsTruthy(it)
		if len(args) > 0 {
			testName := ToString(args[0])
			fn, found := fc.Env.Tests[testName]
			if !found {
				return nil, fmt.Errorf("no test named %q", testName)
			}
			var err error
			ok, err = fn(it, args[1:], nil)
			if err != nil {
				return nil, err
			}
		}
		if ok == want {
			out = append(out, it)
		}
	}
	return out, nil
}

func filterSelectattr(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return selectRejectAttr(v, args, fc, true)
}

func filterRejectattr(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return selectRejectAttr(v, args, fc, false)
}

func selectRejectAttr(v interface{}, args []interface{}, fc *FilterContext, want bool) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("selectattr/rejectattr requires an attribute name")
	}
	attr := ToString(args[0])
	items, _ := ToSlice(v)
	var out []interface{}
	for _, it := range items {
		val := GetAttr(it, attr, fc.Env)
		ok := IsTruthy(val)
		if len(args) > 1 {
			testName := ToString(args[1])
			fn, found := fc.Env.Tests[testName]
			if !found {
				return nil, fmt.Errorf("no test named %q", testName)
			}
			var err error
			ok, err = fn(val, args[2:], nil)
			if err != nil {
				return nil, err
			}
		}
		if ok == want {
			out = append(out, it)
		}
	}
	return out, nil
}

func filterBatch(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("batch requires a size argument")
	}
	size := int(toInt64(args[0]))
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	var fill interface{}
	hasFill := len(args) > 1
	if hasFill {
		fill = args[1]
	}
	items, _ := ToSlice(v)
	var out []interface{}
	for i := 0; i < len(items); i += size {
		end := i + size
		var chunk []interface{}
		if end <= len(items) {
			chunk = append(chunk, items[i:end]...)
		} else {
			chunk = append(chunk, items[i:]...)
			if hasFill {
				for len(chunk) < size {
					chunk = append(chunk, fill)
				}
			}
		}
		out = append(out, chunk)
	}
	return out, nil
}

func filterSliceFilter(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("slice requires a count argument")
	}
	n := int(toInt64(args[0]))
	items, _ := ToSlice(v)
	var fill interface{}
	hasFill := len(args) > 1
	if hasFill {
		fill = args[1]
	}
	total := len(items)
	base := total / n
	extra := total % n
	out := make([]interface{}, n)
	idx := 0
	for i := 0; i < n; i++ {
		count := base
		if i < extra {
			count++
		}
		chunk := append([]interface{}{}, items[idx:idx+count]...)
		idx += count
		if hasFill && count < base+1 && extra > 0 {
			chunk = append(chunk, fill)
		}
		out[i] = chunk
	}
	return out, nil
}

func filterPprint(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	return reprValue(v), nil
}

func filterCenter(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	width := 80
	if len(args) > 0 {
		width = int(toInt64(args[0]))
	}
	s := ToString(v)
	if len(s) >= width {
		return s, nil
	}
	total := width - len(s)
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right), nil
}

func filterFilesizeformat(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	f, _ := ToFloat(v)
	binary := len(args) > 0 && IsTruthy(args[0])
	base := 1000.0
	units := []string{"kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}
	if binary {
		base = 1024.0
		units = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}
	}
	if f < base {
		return fmt.Sprintf("%d Bytes", int64(f)), nil
	}
	for i, u := range units {
		unit := pow10unit(base, i+1)
		if f < unit || i == len(units)-1 {
			return fmt.Sprintf("%.1f %s", f/pow10unit(base, i), u), nil
		}
	}
	return fmt.Sprintf("%.1f %s", f, units[len(units)-1]), nil
}

func pow10unit(base float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= base
	}
	return r
}

func filterItems(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	m, ok := ToMap(v)
	if !ok {
		return []interface{}{}, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = []interface{}{k, m[k]}
	}
	return out, nil
}

func filterAttr(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("attr requires an attribute name")
	}
	return GetAttr(v, ToString(args[0]), fc.Env), nil
}

func filterXmlattr(v interface{}, args []interface{}, kwargs map[string]interface{}, fc *FilterContext) (interface{}, error) {
	m, _ := ToMap(v)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		val := m[k]
		if _, isUndef := val.(*Undefined); isUndef || val == nil {
			continue
		}
		fmt.Fprintf(&sb, ` %s="%s"`, k, html.EscapeString(ToString(val)))
	}
	return Safe(sb.String()), nil
}
