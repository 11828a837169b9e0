package ics

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type BaseProperty struct {
	IANAToken      string
	ICalParameters map[string][]string
	Value          string
}

type PropertyParameter interface {
	KeyValue(s ...interface{}) (string, []string)
}

type KeyValues struct {
	Key   string
	Value []string
}

func (kv *KeyValues) KeyValue(s ...interface{}) (string, []string) {
	return kv.Key, kv.Value
}

func WithCN(cn string) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterCn),
		Value: []string{cn},
	}
}

func WithEncoding(encType string) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterEncoding),
		Value: []string{encType},
	}
}

func WithFmtType(contentType string) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterFmttype),
		Value: []string{contentType},
	}
}

func WithValue(kind string) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterValue),
		Value: []string{kind},
	}
}

func WithRSVP(b bool) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterRsvp),
		Value: []string{strings.ToUpper(strconv.FormatBool(b))},
	}
}

func WithTZID(tzid string) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterTzid),
		Value: []string{tzid},
	}
}

func WithFbType(t FreeBusyTimeType) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterFbtype),
		Value: []string{string(t)},
	}
}

func WithRelated(r string) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterRelated),
		Value: []string{r},
	}
}

func WithAlternativeRepresentation(uri *url.URL) PropertyParameter {
	return &KeyValues{
		Key:   string(ParameterAltrep),
		Value: []string{uri.String()},
	}
}

// parameterValue returns the first value of the named parameter.
func (property *BaseProperty) parameterValue(param Parameter) (string, error) {
	v, ok := property.ICalParameters[string(param)]
	if !ok || len(v) == 0 {
		return "", fmt.Errorf("parameter %q not found in property", param)
	}
	if len(v) != 1 {
		return "", fmt.Errorf("expected only one value for parameter %q in property, found %d", param, len(v))
	}
	return v[0], nil
}

func (property *BaseProperty) firstParameter(param Parameter) string {
	if v := property.ICalParameters[string(param)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Bytes decodes the value according to its ENCODING and CHARSET parameters.
func (property *BaseProperty) Bytes() ([]byte, error) {
	b, err := DecodeBytes(property.Value, Encoding(property.firstParameter(ParameterEncoding)), property.firstParameter(ParameterCharset))
	if err != nil {
		return nil, valueError(property.IANAToken, property.Value, err)
	}
	return b, nil
}

// paramValueEscaper applies the RFC 6868 caret encoding.
var paramValueEscaper = strings.NewReplacer(
	"^", "^^",
	"\n", "^n",
	`"`, "^'",
)

var paramValueUnescaper = strings.NewReplacer(
	"^^", "^",
	"^n", "\n",
	"^N", "\n",
	"^'", `"`,
)

func formatParamValue(v string) string {
	if strings.ContainsAny(v, "^\n\"") {
		v = paramValueEscaper.Replace(v)
	}
	if strings.ContainsAny(v, ";:,") {
		return `"` + v + `"`
	}
	return v
}

// contentLine renders the unfolded content line.
func (property *BaseProperty) contentLine() string {
	b := &strings.Builder{}
	b.WriteString(property.IANAToken)
	keys := make([]string, 0, len(property.ICalParameters))
	for k := range property.ICalParameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(';')
		b.WriteString(k)
		b.WriteByte('=')
		for vi, v := range property.ICalParameters[k] {
			if vi > 0 {
				b.WriteByte(',')
			}
			b.WriteString(formatParamValue(v))
		}
	}
	b.WriteByte(':')
	b.WriteString(property.Value)
	return b.String()
}

func (property *BaseProperty) serialize(w io.Writer, serialConfig *SerializationConfiguration) error {
	if serialConfig == nil {
		serialConfig = defaultSerializationOptions()
	}
	l := foldLineWith(property.contentLine(), serialConfig.MaxLength, serialConfig.NewLine)
	_, err := io.WriteString(w, l+serialConfig.NewLine)
	return err
}

type IANAProperty struct {
	BaseProperty
}

type ContentLine string

var (
	errEmptyName        = errors.New("missing property name")
	errMissingColon     = errors.New("missing ':' before property value")
	errMissingParamName = errors.New("missing parameter name")
)

func isNameChar(c byte) bool {
	return c == '-' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func scanName(s string, p int) int {
	for p < len(s) && isNameChar(s[p]) {
		p++
	}
	return p
}

// ParseProperty parses one unfolded content line:
//
//	NAME *(";" PARAM-NAME "=" PARAM-VALUE *("," PARAM-VALUE)) ":" VALUE
//
// Errors are *SyntaxError values carrying the column of the failure.
func ParseProperty(contentLine ContentLine) (*BaseProperty, error) {
	s := string(contentLine)
	r := &BaseProperty{
		ICalParameters: map[string][]string{},
	}
	p := scanName(s, 0)
	if p == 0 {
		return nil, &SyntaxError{Column: 1, Raw: s, Err: errEmptyName}
	}
	r.IANAToken = strings.ToUpper(s[:p])
	for {
		if p >= len(s) {
			return nil, &SyntaxError{Column: p + 1, Raw: s, Err: errMissingColon}
		}
		switch s[p] {
		case ':':
			r.Value = s[p+1:]
			return r, nil
		case ';':
			np, err := parsePropertyParam(r, s, p+1)
			if err != nil {
				return nil, &SyntaxError{Column: np + 1, Raw: s, Err: fmt.Errorf("parsing property %s: %w", r.IANAToken, err)}
			}
			p = np
		default:
			return nil, &SyntaxError{Column: p + 1, Raw: s, Err: fmt.Errorf("unexpected character %q after %s", s[p], r.IANAToken)}
		}
	}
}

func parsePropertyParam(r *BaseProperty, contentLine string, p int) (int, error) {
	end := scanName(contentLine, p)
	if end == p {
		return p, errMissingParamName
	}
	k := strings.ToUpper(contentLine[p:end])
	p = end
	if p >= len(contentLine) || contentLine[p] != '=' {
		return p, fmt.Errorf("missing parameter value for %s", k)
	}
	p++
	for {
		var v string
		var err error
		v, p, err = parsePropertyParamValue(contentLine, p)
		if err != nil {
			return p, fmt.Errorf("parameter %s: %w", k, err)
		}
		r.ICalParameters[k] = append(r.ICalParameters[k], v)
		if p < len(contentLine) && contentLine[p] == ',' {
			p++
			continue
		}
		return p, nil
	}
}

// parsePropertyParamValue reads a quoted or bare parameter value starting at
// p and returns the position of the delimiter that follows it.
//
//	quoted-string = DQUOTE *QSAFE-CHAR DQUOTE
//	QSAFE-CHAR    = WSP / %x21 / %x23-7E / NON-US-ASCII
//	SAFE-CHAR     = WSP / %x21 / %x23-2B / %x2D-39 / %x3C-7E / NON-US-ASCII
func parsePropertyParamValue(s string, p int) (string, int, error) {
	if p < len(s) && s[p] == '"' {
		end := strings.IndexByte(s[p+1:], '"')
		if end < 0 {
			return "", p, errors.New("unterminated quoted parameter value")
		}
		v := s[p+1 : p+1+end]
		if err := checkParamChars(v); err != nil {
			return "", p, err
		}
		p += end + 2
		if p < len(s) && !strings.ContainsRune(";:,", rune(s[p])) {
			return "", p, fmt.Errorf("unexpected character %q after quoted parameter value", s[p])
		}
		return paramValueUnescaper.Replace(v), p, nil
	}
	start := p
	for ; p < len(s); p++ {
		switch s[p] {
		case ';', ':', ',':
			v := s[start:p]
			if err := checkParamChars(v); err != nil {
				return "", p, err
			}
			return paramValueUnescaper.Replace(v), p, nil
		case '"':
			return "", p, errors.New("unexpected double quote in property param value")
		}
	}
	return "", p, errMissingColon
}

func checkParamChars(v string) error {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 0x20 && c != '\t') || c == 0x7f {
			return fmt.Errorf("unexpected char ascii:%d in property param value", c)
		}
	}
	return nil
}
