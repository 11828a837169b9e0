package ics

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Encoding is the value of the ENCODING parameter, RFC 5545 section 3.2.7,
// with the RFC 2445 era encodings still found in the wild.
type Encoding string

const (
	EncodingBase64          Encoding = "BASE64"
	EncodingQuotedPrintable Encoding = "QUOTED-PRINTABLE"
	Encoding7Bit            Encoding = "7BIT"
	Encoding8Bit            Encoding = "8BIT"
)

const ParameterCharset Parameter = "CHARSET"

func charsetEncoding(charset string) (encoding.Encoding, error) {
	if charset == "" {
		return nil, nil
	}
	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("charset %s: %w", charset, err)
	}
	return enc, nil
}

// EncodeBytes encodes payload for a property carrying ENCODING=enc. For
// QUOTED-PRINTABLE the payload is UTF-8 text that is first transcoded to
// charset, when one is given.
func EncodeBytes(payload []byte, enc Encoding, charset string) (string, error) {
	switch Encoding(strings.ToUpper(string(enc))) {
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(payload), nil
	case EncodingQuotedPrintable:
		ce, err := charsetEncoding(charset)
		if err != nil {
			return "", err
		}
		if ce != nil {
			payload, err = ce.NewEncoder().Bytes(payload)
			if err != nil {
				return "", fmt.Errorf("transcoding to %s: %w", charset, err)
			}
		}
		b := &bytes.Buffer{}
		w := quotedprintable.NewWriter(b)
		w.Binary = true
		if _, err := w.Write(payload); err != nil {
			return "", err
		}
		if err := w.Close(); err != nil {
			return "", err
		}
		// soft line breaks would be folded again by the content line writer
		return strings.ReplaceAll(b.String(), "=\r\n", ""), nil
	case Encoding7Bit:
		for i, c := range payload {
			if c >= 0x80 {
				return "", fmt.Errorf("%w: octet %#x at %d is not 7bit", ErrInvalidEncoding, c, i)
			}
		}
		return string(payload), nil
	case Encoding8Bit, "":
		return string(payload), nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidEncoding, enc)
}

// DecodeBytes reverses EncodeBytes.
func DecodeBytes(value string, enc Encoding, charset string) ([]byte, error) {
	switch Encoding(strings.ToUpper(string(enc))) {
	case EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		return b, nil
	case EncodingQuotedPrintable:
		b, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(value)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		ce, err := charsetEncoding(charset)
		if err != nil {
			return nil, err
		}
		if ce != nil {
			b, err = ce.NewDecoder().Bytes(b)
			if err != nil {
				return nil, fmt.Errorf("transcoding from %s: %w", charset, err)
			}
		}
		return b, nil
	case Encoding7Bit:
		for i := 0; i < len(value); i++ {
			if value[i] >= 0x80 {
				return nil, fmt.Errorf("%w: octet %#x at %d is not 7bit", ErrInvalidEncoding, value[i], i)
			}
		}
		return []byte(value), nil
	case Encoding8Bit, "":
		return []byte(value), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, enc)
}
