package jit

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// PropertyMap maps abbreviation key to one or more CSS property names.
type PropertyMap map[string][]string

var builtinProperties = PropertyMap{
	// box model
	"w":     {"width"},
	"h":     {"height"},
	"min-w": {"min-width"},
	"max-w": {"max-width"},
	"min-h": {"min-height"},
	"max-h": {"max-height"},
	"size":  {"width", "height"},
	"p":     {"padding"},
	"px":    {"padding-left", "padding-right"},
	"py":    {"padding-top", "padding-bottom"},
	"pt":    {"padding-top"},
	"pr":    {"padding-right"},
	"pb":    {"padding-bottom"},
	"pl":    {"padding-left"},
	"m":     {"margin"},
	"mx":    {"margin-left", "margin-right"},
	"my":    {"margin-top", "margin-bottom"},
	"mt":    {"margin-top"},
	"mr":    {"margin-right"},
	"mb":    {"margin-bottom"},
	"ml":    {"margin-left"},
	"ar":    {"aspect-ratio"},
	"box":   {"box-sizing"},

	// positioning
	"d":       {"display"},
	"pos":     {"position"},
	"inset":   {"inset"},
	"inset-x": {"left", "right"},
	"inset-y": {"top", "bottom"},
	"top":     {"top"},
	"right":   {"right"},
	"bottom":  {"bottom"},
	"left":    {"left"},
	"z":       {"z-index"},
	"ov":      {"overflow"},
	"ov-x":    {"overflow-x"},
	"ov-y":    {"overflow-y"},

	// flex and grid
	"flex":   {"flex"},
	"fd":     {"flex-direction"},
	"fwr":    {"flex-wrap"},
	"grow":   {"flex-grow"},
	"shrink": {"flex-shrink"},
	"basis":  {"flex-basis"},
	"order":  {"order"},
	"jc":     {"justify-content"},
	"ji":     {"justify-items"},
	"ai":     {"align-items"},
	"ac":     {"align-content"},
	"as":     {"align-self"},
	"gap":    {"gap"},
	"gap-x":  {"column-gap"},
	"gap-y":  {"row-gap"},
	"gtc":    {"grid-template-columns"},
	"gtr":    {"grid-template-rows"},
	"gc":     {"grid-column"},
	"gr":     {"grid-row"},
	"place":  {"place-items"},

	// typography
	"c":   {"color"},
	"fs":  {"font-size"},
	"fw":  {"font-weight"},
	"ff":  {"font-family"},
	"fst": {"font-style"},
	"lh":  {"line-height"},
	"ls":  {"letter-spacing"},
	"ta":  {"text-align"},
	"td":  {"text-decoration"},
	"tt":  {"text-transform"},
	"ti":  {"text-indent"},
	"ws":  {"white-space"},
	"wb":  {"word-break"},
	"va":  {"vertical-align"},

	// backgrounds and borders
	"bgc":     {"background-color"},
	"bgi":     {"background-image"},
	"bgp":     {"background-position"},
	"bgs":     {"background-size"},
	"bgr":     {"background-repeat"},
	"border":  {"border"},
	"bw":      {"border-width"},
	"bc":      {"border-color"},
	"bs":      {"border-style"},
	"bt":      {"border-top"},
	"brd-r":   {"border-right"},
	"bb":      {"border-bottom"},
	"bl":      {"border-left"},
	"rounded": {"border-radius"},
	"outline": {"outline"},

	// effects
	"o":       {"opacity"},
	"shadow":  {"box-shadow"},
	"filter":  {"filter"},
	"tf":      {"transform"},
	"tr":      {"transition"},
	"anim":    {"animation"},
	"cursor":  {"cursor"},
	"pe":      {"pointer-events"},
	"select":  {"user-select"},
	"fit":     {"object-fit"},
	"obj-pos": {"object-position"},
	"fill":    {"fill"},
	"stroke":  {"stroke"},
	"content": {"content"},
	"list":    {"list-style"},
}

// keys which need value to decide actual property
var valueDependent = map[string]func(value string) []string{
	"bg": func(value string) []string { return []string{backgroundProperty(value)} },
}

// Resolver maps abbreviation keys to real CSS property names.
// NOTE: presently not to be used concurrently!
type Resolver struct {
	log   *zap.Logger
	table PropertyMap
}

// NewResolver creates resolver initialized with built-in table.
func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{log: log, table: maps.Clone(builtinProperties)}
}

// Merge adds custom mapping to the table. Built-in keys are never replaced,
// custom keys added earlier may be redefined. It returns number of keys
// actually accepted.
func (r *Resolver) Merge(custom PropertyMap) int {
	keys := make([]string, 0, len(custom))
	for k := range custom {
		keys = append(keys, k)
	}
	sort.Sort(natural.StringSlice(keys))

	accepted := 0
	for _, key := range keys {
		props := custom[key]
		if err := validateCustomKey(key, props); err != nil {
			r.log.Warn("Ignoring custom property mapping", zap.String("key", key), zap.Error(err))
			continue
		}
		if _, builtin := builtinProperties[key]; builtin {
			r.log.Warn("Custom property mapping cannot replace built-in one", zap.String("key", key), zap.Strings("properties", props))
			continue
		}
		if _, builtin := valueDependent[key]; builtin {
			r.log.Warn("Custom property mapping cannot replace built-in one", zap.String("key", key), zap.Strings("properties", props))
			continue
		}
		r.table[key] = append([]string(nil), props...)
		accepted++
	}
	return accepted
}

// Resolve returns property names for key, value must already be normalized.
func (r *Resolver) Resolve(key, value string) ([]string, error) {
	if strings.HasPrefix(key, "--") {
		return []string{key}, nil
	}
	if fn, ok := valueDependent[key]; ok {
		return fn(value), nil
	}
	if props, ok := r.table[key]; ok {
		return props, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, key)
}

func validateCustomKey(key string, props []string) error {
	if !isPropertyKey(key) {
		return fmt.Errorf("key must match [a-z0-9-]+")
	}
	if strings.HasPrefix(key, "--") {
		return fmt.Errorf("custom properties resolve to themselves")
	}
	if len(props) == 0 {
		return fmt.Errorf("no properties specified")
	}
	for _, p := range props {
		if strings.TrimSpace(p) == "" || strings.ContainsAny(p, " \t\n:;{}") {
			return fmt.Errorf("bad property name %q", p)
		}
	}
	return nil
}

func isPropertyKey(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}

// backgroundProperty disambiguates "bg" by looking at value.
func backgroundProperty(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case isImageValue(v):
		return "background-image"
	case isColorValue(v):
		return "background-color"
	default:
		return "background"
	}
}

var imageFunctions = []string{
	"url(", "image(", "image-set(", "cross-fade(", "element(",
	"linear-gradient(", "radial-gradient(", "conic-gradient(",
	"repeating-linear-gradient(", "repeating-radial-gradient(", "repeating-conic-gradient(",
}

var colorFunctions = []string{
	"rgb(", "rgba(", "hsl(", "hsla(", "hwb(", "lab(", "lch(", "oklab(", "oklch(", "color(", "color-mix(",
}

func isImageValue(v string) bool {
	for _, f := range imageFunctions {
		if strings.HasPrefix(v, f) {
			return true
		}
	}
	return false
}

func isColorValue(v string) bool {
	if strings.HasPrefix(v, "#") {
		return isHexColor(v[1:])
	}
	for _, f := range colorFunctions {
		if strings.HasPrefix(v, f) {
			return true
		}
	}
	_, ok := colorKeywords[v]
	return ok
}

func isHexColor(s string) bool {
	switch len(s) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

var colorKeywords = func() map[string]struct{} {
	names := `transparent currentcolor
	aliceblue antiquewhite aqua aquamarine azure beige bisque black blanchedalmond blue
	blueviolet brown burlywood cadetblue chartreuse chocolate coral cornflowerblue cornsilk
	crimson cyan darkblue darkcyan darkgoldenrod darkgray darkgreen darkgrey darkkhaki
	darkmagenta darkolivegreen darkorange darkorchid darkred darksalmon darkseagreen
	darkslateblue darkslategray darkslategrey darkturquoise darkviolet deeppink deepskyblue
	dimgray dimgrey dodgerblue firebrick floralwhite forestgreen fuchsia gainsboro ghostwhite
	gold goldenrod gray green greenyellow grey honeydew hotpink indianred indigo ivory khaki
	lavender lavenderblush lawngreen lemonchiffon lightblue lightcoral lightcyan
	lightgoldenrodyellow lightgray lightgreen lightgrey lightpink lightsalmon lightseagreen
	lightskyblue lightslategray lightslategrey lightsteelblue lightyellow lime limegreen linen
	magenta maroon mediumaquamarine mediumblue mediumorchid mediumpurple mediumseagreen
	mediumslateblue mediumspringgreen mediumturquoise mediumvioletred midnightblue mintcream
	mistyrose moccasin navajowhite navy oldlace olive olivedrab orange orangered orchid
	palegoldenrod palegreen paleturquoise palevioletred papayawhip peachpuff peru pink plum
	powderblue purple rebeccapurple red rosybrown royalblue saddlebrown salmon sandybrown
	seagreen seashell sienna silver skyblue slateblue slategray slategrey snow springgreen
	steelblue tan teal thistle tomato turquoise violet wheat white whitesmoke yellow yellowgreen`
	m := make(map[string]struct{}, 160)
	for name := range strings.FieldsSeq(names) {
		m[name] = struct{}{}
	}
	return m
}()
