package zimage

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// queryKeys lists the parameters a selector may carry, in wire order.
var queryKeys = []string{"prompt", "width", "height", "seed", "num_steps", "guidance_scale", "output_format"}

// ParseSelector extracts a GenerationRequest from a selector such as
// "zimage/generate?prompt=cat&width=512". Selectors without a '?' are rejected
// with ErrInvalidRequestFormat. For every key the first non-blank value wins
// and missing keys keep their defaults.
func ParseSelector(selector string) (GenerationRequest, error) {
	_, params, ok := strings.Cut(selector, "?")
	if !ok {
		return GenerationRequest{}, ErrInvalidRequestFormat
	}

	values := parseQuery(params)
	input := make(map[string]any)
	for _, key := range queryKeys {
		for _, v := range values[key] {
			if v != "" {
				input[key] = v
				break
			}
		}
	}

	req := DefaultRequest()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncKind(parseDecimal),
		TagName:    "query",
		Result:     &req,
	})
	if err != nil {
		return GenerationRequest{}, err
	}
	if err := decoder.Decode(input); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) {
			return GenerationRequest{}, fmt.Errorf("%w: %s", ErrInvalidParameters, strings.Join(merr.Errors, "; "))
		}
		return GenerationRequest{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return req, nil
}

// parseQuery splits params on '&' and each pair on its first '='. It never
// fails: ';' is ordinary text, pairs without '=' are skipped and escapes that
// cannot be decoded are kept as written.
func parseQuery(params string) url.Values {
	values := make(url.Values)
	for _, pair := range strings.Split(params, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = unescape(key)
		values[key] = append(values[key], unescape(value))
	}
	return values
}

// unescape decodes '+' and %XX escapes, leaving a '%' that does not start a
// valid escape in place.
func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			n, _ := strconv.ParseUint(s[i+1:i+3], 16, 8)
			b.WriteByte(byte(n))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

// parseDecimal converts query strings into numbers using base 10 only, so
// "010" is ten and "0x10" is an error.
func parseDecimal(from, to reflect.Kind, data any) (any, error) {
	s, ok := data.(string)
	if !ok || from != reflect.String {
		return data, nil
	}
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return data, nil
}

// Selector renders req as a selector under key. Every field is written, so
// the result round-trips through ParseSelector.
func (req GenerationRequest) Selector(key string) string {
	values := make([]string, 0, len(queryKeys))
	add := func(k, v string) {
		values = append(values, k+"="+url.QueryEscape(v))
	}
	add("prompt", req.Prompt)
	add("width", strconv.Itoa(req.Width))
	add("height", strconv.Itoa(req.Height))
	add("seed", strconv.FormatInt(req.Seed, 10))
	add("num_steps", strconv.Itoa(req.NumSteps))
	add("guidance_scale", strconv.FormatFloat(req.GuidanceScale, 'g', -1, 64))
	add("output_format", req.OutputFormat)
	return key + "?" + strings.Join(values, "&")
}
