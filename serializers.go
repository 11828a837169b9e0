package ics

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ValueSerializer converts one value type to and from its text form.
type ValueSerializer interface {
	SerializeToString(value any) (string, error)
	Deserialize(text string, params map[string][]string) (any, error)
}

type typedSerializer[T any] struct {
	format func(T) (string, error)
	parse  func(string, map[string][]string) (T, error)
}

func (s typedSerializer[T]) SerializeToString(value any) (string, error) {
	switch v := value.(type) {
	case T:
		return s.format(v)
	case *T:
		if v != nil {
			return s.format(*v)
		}
	}
	var zero T
	return "", fmt.Errorf("cannot serialize %T as %T", value, zero)
}

func (s typedSerializer[T]) Deserialize(text string, params map[string][]string) (any, error) {
	return s.parse(text, params)
}

func serializerOf[T any](format func(T) string, parse func(string, map[string][]string) (T, error)) ValueSerializer {
	return typedSerializer[T]{
		format: func(v T) (string, error) { return format(v), nil },
		parse:  parse,
	}
}

func ignoreParams[T any](parse func(string) (T, error)) func(string, map[string][]string) (T, error) {
	return func(text string, _ map[string][]string) (T, error) {
		return parse(strings.TrimSpace(text))
	}
}

var errNotBoolean = errors.New("expected TRUE or FALSE")

var serializers = map[ValueDataType]ValueSerializer{
	ValueDataTypeBinary: serializerOf(base64.StdEncoding.EncodeToString, ignoreParams(base64.StdEncoding.DecodeString)),
	ValueDataTypeBoolean: serializerOf(
		func(b bool) string { return strings.ToUpper(strconv.FormatBool(b)) },
		ignoreParams(func(s string) (bool, error) {
			switch strings.ToUpper(s) {
			case "TRUE":
				return true, nil
			case "FALSE":
				return false, nil
			}
			return false, errNotBoolean
		}),
	),
	ValueDataTypeCalAddress: serializerOf((*url.URL).String, ignoreParams(url.Parse)),
	ValueDataTypeUri:        serializerOf((*url.URL).String, ignoreParams(url.Parse)),
	ValueDataTypeDate:       serializerOf(FormatDateTime, ParseDateTime),
	ValueDataTypeDateTime:   serializerOf(FormatDateTime, ParseDateTime),
	ValueDataTypeDuration:   serializerOf(FormatDuration, ignoreParams(ParseDuration)),
	ValueDataTypeFloat: serializerOf(
		func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) },
		ignoreParams(func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }),
	),
	ValueDataTypeInteger: serializerOf(strconv.Itoa, ignoreParams(func(s string) (int, error) {
		return strconv.Atoi(strings.TrimPrefix(s, "+"))
	})),
	ValueDataTypePeriod:        serializerOf(FormatPeriod, ParsePeriod),
	ValueDataTypeRecur:         serializerOf((*RecurrencePattern).String, ignoreParams(ParseRecurrencePattern)),
	ValueDataTypeText:          serializerOf(ToText, func(s string, _ map[string][]string) (string, error) { return FromText(s), nil }),
	ValueDataTypeUtcOffset:     serializerOf(UTCOffset.String, ignoreParams(ParseUTCOffset)),
	ValueDataTypeGeo:           serializerOf(GeographicLocation.String, ignoreParams(ParseGeo)),
	ValueDataTypeRequestStatus: serializerOf(RequestStatus.String, parseRequestStatusParams),
	ValueDataTypeStatusCode:    serializerOf(StatusCode.String, ignoreParams(ParseStatusCode)),
	ValueDataTypeWeekDay:       serializerOf(WeekDay.String, ignoreParams(ParseWeekDay)),
}

func parseRequestStatusParams(text string, _ map[string][]string) (RequestStatus, error) {
	return ParseRequestStatus(text)
}

// SerializerFor returns the serializer registered for t.
func SerializerFor(t ValueDataType) (ValueSerializer, bool) {
	s, ok := serializers[t]
	return s, ok
}

type propertyDescriptor struct {
	defaultType ValueDataType
	allowed     []ValueDataType
	list        bool
}

var (
	dateTimeOrDate = []ValueDataType{ValueDataTypeDateTime, ValueDataTypeDate}
	textProperty   = propertyDescriptor{defaultType: ValueDataTypeText}
	textList       = propertyDescriptor{defaultType: ValueDataTypeText, list: true}
	instantProp    = propertyDescriptor{defaultType: ValueDataTypeDateTime}
	dateProp       = propertyDescriptor{defaultType: ValueDataTypeDateTime, allowed: dateTimeOrDate}
)

var propertyDescriptors = map[Property]propertyDescriptor{
	PropertyAttach:          {defaultType: ValueDataTypeUri, allowed: []ValueDataType{ValueDataTypeUri, ValueDataTypeBinary}},
	PropertyCategories:      textList,
	PropertyResources:       textList,
	PropertyClass:           textProperty,
	PropertyComment:         textProperty,
	PropertyDescription:     textProperty,
	PropertyLocation:        textProperty,
	PropertySummary:         textProperty,
	PropertyContact:         textProperty,
	PropertyRelatedTo:       textProperty,
	PropertyUid:             textProperty,
	PropertyTzid:            textProperty,
	PropertyTzname:          textProperty,
	PropertyGeo:             {defaultType: ValueDataTypeGeo},
	PropertyPercentComplete: {defaultType: ValueDataTypeInteger},
	PropertyPriority:        {defaultType: ValueDataTypeInteger},
	PropertyRepeat:          {defaultType: ValueDataTypeInteger},
	PropertySequence:        {defaultType: ValueDataTypeInteger},
	PropertyCompleted:       instantProp,
	PropertyCreated:         instantProp,
	PropertyDtstamp:         instantProp,
	PropertyLastModified:    instantProp,
	PropertyDtstart:         dateProp,
	PropertyDtend:           dateProp,
	PropertyDue:             dateProp,
	PropertyRecurrenceId:    dateProp,
	PropertyDuration:        {defaultType: ValueDataTypeDuration},
	PropertyFreebusy:        {defaultType: ValueDataTypePeriod, list: true},
	PropertyRdate:           {defaultType: ValueDataTypeDateTime, allowed: []ValueDataType{ValueDataTypeDateTime, ValueDataTypeDate, ValueDataTypePeriod}, list: true},
	PropertyExdate:          {defaultType: ValueDataTypeDateTime, allowed: dateTimeOrDate, list: true},
	PropertyRrule:           {defaultType: ValueDataTypeRecur},
	PropertyExrule:          {defaultType: ValueDataTypeRecur},
	PropertyTrigger:         {defaultType: ValueDataTypeDuration, allowed: []ValueDataType{ValueDataTypeDuration, ValueDataTypeDateTime}},
	PropertyTzoffsetfrom:    {defaultType: ValueDataTypeUtcOffset},
	PropertyTzoffsetto:      {defaultType: ValueDataTypeUtcOffset},
	PropertyTzurl:           {defaultType: ValueDataTypeUri},
	PropertyUrl:             {defaultType: ValueDataTypeUri},
	PropertyAttendee:        {defaultType: ValueDataTypeCalAddress},
	PropertyOrganizer:       {defaultType: ValueDataTypeCalAddress},
	PropertyRequestStatus:   {defaultType: ValueDataTypeRequestStatus},
}

// ValueType returns the data type of the property value: the VALUE parameter
// when the property allows it, otherwise the property's default. Unknown
// properties are TEXT.
func (property *BaseProperty) ValueType() ValueDataType {
	d, ok := propertyDescriptors[Property(property.IANAToken)]
	if !ok {
		d = textProperty
	}
	v := ValueDataType(strings.ToUpper(property.firstParameter(ParameterValue)))
	if v == "" || v == d.defaultType {
		return d.defaultType
	}
	if len(d.allowed) == 0 && !ok {
		if _, known := serializers[v]; known {
			return v
		}
	}
	for _, a := range d.allowed {
		if a == v {
			return v
		}
	}
	return d.defaultType
}

// TypedValue decodes the value with the serializer for ValueType. List
// valued properties yield a slice; RDATE, EXDATE and FREEBUSY yield a
// PeriodList.
func (property *BaseProperty) TypedValue() (any, error) {
	t := property.ValueType()
	d := propertyDescriptors[Property(property.IANAToken)]
	if d.list {
		switch t {
		case ValueDataTypeDate, ValueDataTypeDateTime, ValueDataTypePeriod:
			pl, err := ParsePeriodList(property.Value, property.ICalParameters)
			if err != nil {
				return nil, valueError(property.IANAToken, property.Value, err)
			}
			return pl, nil
		}
	}
	if t == ValueDataTypeBinary {
		b, err := property.Bytes()
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	s, ok := SerializerFor(t)
	if !ok {
		return property.Value, nil
	}
	if !d.list {
		v, err := s.Deserialize(property.Value, property.ICalParameters)
		if err != nil {
			return nil, valueError(property.IANAToken, property.Value, err)
		}
		return v, nil
	}
	var values []any
	for _, part := range splitEscaped(property.Value, ',') {
		v, err := s.Deserialize(part, property.ICalParameters)
		if err != nil {
			return nil, valueError(property.IANAToken, part, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// SetTypedValue serializes v with the serializer for the property's value
// type.
func (property *BaseProperty) SetTypedValue(v any) error {
	t := property.ValueType()
	s, ok := SerializerFor(t)
	if !ok {
		return fmt.Errorf("no serializer for %s", t)
	}
	if pl, isList := v.(PeriodList); isList {
		property.Value = pl.String()
		return nil
	}
	text, err := s.SerializeToString(v)
	if err != nil {
		return valueError(property.IANAToken, fmt.Sprint(v), err)
	}
	property.Value = text
	return nil
}
