package ics

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyParse(t *testing.T) {
	tests := []struct {
		Input    string
		Expected func(output *BaseProperty) bool
	}{
		{Input: "ATTENDEE;RSVP=TRUE;ROLE=REQ-PARTICIPANT;CUTYPE=GROUP:mailto:employee-A@example.com", Expected: func(output *BaseProperty) bool {
			return output.IANAToken == "ATTENDEE" && output.Value == "mailto:employee-A@example.com" && output.ICalParameters["CUTYPE"][0] == "GROUP"
		}},
		{Input: "ATTENDEE;RSVP=\"TRUE\";ROLE=REQ-PARTICIPANT;CUTYPE=GROUP:mailto:employee-A@example.com", Expected: func(output *BaseProperty) bool {
			return output.IANAToken == "ATTENDEE" && output.Value == "mailto:employee-A@example.com" && output.ICalParameters["RSVP"][0] == "TRUE"
		}},
		{Input: "dtstart;tzid=Europe/Berlin:20240101T090000", Expected: func(output *BaseProperty) bool {
			return output.IANAToken == "DTSTART" && output.ICalParameters["TZID"][0] == "Europe/Berlin"
		}},
		{Input: "DESCRIPTION;ALTREP=\"cid:part1.0001@example.org\":The value: has colons", Expected: func(output *BaseProperty) bool {
			return output.Value == "The value: has colons" && output.ICalParameters["ALTREP"][0] == "cid:part1.0001@example.org"
		}},
		{Input: "CATEGORIES;X-LIST=a,\"b,c\",d:x", Expected: func(output *BaseProperty) bool {
			return assert.ObjectsAreEqual([]string{"a", "b,c", "d"}, output.ICalParameters["X-LIST"])
		}},
		{Input: "SUMMARY:", Expected: func(output *BaseProperty) bool {
			return output.IANAToken == "SUMMARY" && output.Value == ""
		}},
	}
	for i, test := range tests {
		output, err := ParseProperty(ContentLine(test.Input))
		if assert.NoError(t, err, test.Input) && !test.Expected(output) {
			t.Logf("Got: %#v", output)
			t.Errorf("Failed %d %#v", i, test)
		}
	}
}

func TestPropertyParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column int
	}{
		{name: "no name", input: ":value", column: 1},
		{name: "no colon", input: "SUMMARY", column: 8},
		{name: "quote inside value", input: "ATTENDEE;RSVP=T\"RUE\":mailto:a@example.com", column: 16},
		{name: "unterminated quote", input: "ATTENDEE;CN=\"Jane:mailto:a@example.com", column: 13},
		{name: "missing param name", input: "SUMMARY;=x:y", column: 9},
		{name: "bad character after name", input: "SUM MARY:x", column: 4},
		{name: "control character", input: "SUMMARY;X-A=a\x01b:x", column: 16},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParseProperty(ContentLine(tc.input))
			assert.Nil(t, p)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tc.column, se.Column)
			assert.Equal(t, tc.input, se.Raw)
		})
	}
}

func TestParameterCaretEncoding(t *testing.T) {
	p, err := ParseProperty(`ATTENDEE;CN="George Herman ^'Babe^' Ruth";X-ADDR="Palo Alto^nCA":mailto:babe@example.com`)
	require.NoError(t, err)
	assert.Equal(t, `George Herman "Babe" Ruth`, p.ICalParameters["CN"][0])
	assert.Equal(t, "Palo Alto\nCA", p.ICalParameters["X-ADDR"][0])

	assert.Equal(t, `ATTENDEE;CN=George Herman ^'Babe^' Ruth;X-ADDR=Palo Alto^nCA:mailto:babe@example.com`, p.contentLine())
}

func TestPropertyContentLine(t *testing.T) {
	p := &BaseProperty{
		IANAToken: "ATTENDEE",
		Value:     "mailto:jane@example.com",
		ICalParameters: map[string][]string{
			"ROLE":     {"REQ-PARTICIPANT"},
			"CN":       {"Doe, Jane"},
			"DELEGATE": {"mailto:a@example.com", "mailto:b@example.com"},
		},
	}
	assert.Equal(t, `ATTENDEE;CN="Doe, Jane";DELEGATE="mailto:a@example.com","mailto:b@example.com";ROLE=REQ-PARTICIPANT:mailto:jane@example.com`, p.contentLine())

	reparsed, err := ParseProperty(ContentLine(p.contentLine()))
	require.NoError(t, err)
	assert.Equal(t, p, reparsed)

	b := &strings.Builder{}
	require.NoError(t, p.serialize(b, &SerializationConfiguration{MaxLength: 40, NewLine: "\n"}))
	assert.Equal(t, p.contentLine()+"\r\n", UnfoldLines(strings.ReplaceAll(b.String(), "\n", "\r\n")))
}

func TestParameterHelpers(t *testing.T) {
	p := &BaseProperty{IANAToken: "DESCRIPTION", ICalParameters: map[string][]string{}}
	for _, param := range []PropertyParameter{
		WithCN("Jane"),
		WithRSVP(true),
		WithAlternativeRepresentation(&url.URL{Scheme: "cid", Opaque: "part1@example.org"}),
	} {
		k, v := param.KeyValue()
		p.ICalParameters[k] = v
	}
	assert.Equal(t, "Jane", p.firstParameter(ParameterCn))
	assert.Equal(t, "TRUE", p.firstParameter(ParameterRsvp))
	assert.Equal(t, "cid:part1@example.org", p.firstParameter(ParameterAltrep))
	assert.Equal(t, "", p.firstParameter(ParameterTzid))

	_, err := p.parameterValue(ParameterTzid)
	assert.Error(t, err)
}
