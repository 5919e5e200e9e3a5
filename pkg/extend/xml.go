package extend

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Response envelope names.
const (
	elemResponse = "rsp"
	attrStat     = "stat"
	statOK       = "ok"

	elemChannel       = "channel"
	elemChannelID     = "id"
	elemChannelName   = "name"
	elemChannelNumber = "number"
	elemChannelType   = "type"
)

// tokenStream is a forward-only pass over a response document that tracks
// the stack of open element names and verifies the status attribute of every
// rsp element as soon as it is opened.
//
// Text split by CDATA sections, comments or processing instructions is
// returned as a single CharData token holding the joined text.
type tokenStream struct {
	dec   *xml.Decoder
	stack []string

	// buffered holds the token (or error) read past the end of a text run.
	buffered    xml.Token
	bufferedErr error
}

func newTokenStream(doc []byte) *tokenStream {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Entity = xml.HTMLEntity
	return &tokenStream{dec: dec}
}

// next returns the next token, or io.EOF once the document is exhausted.
func (s *tokenStream) next() (xml.Token, error) {
	tok, err := s.read()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case xml.CharData:
		return s.joinText(t.Copy()), nil
	case xml.StartElement:
		s.stack = append(s.stack, t.Name.Local)
		if t.Name.Local == elemResponse {
			if err := checkStat(t); err != nil {
				return nil, err
			}
		}
	case xml.EndElement:
		if len(s.stack) > 0 {
			s.stack = s.stack[:len(s.stack)-1]
		}
	}
	return tok, nil
}

// read returns the buffered token if there is one, otherwise the next
// token from the decoder.
func (s *tokenStream) read() (xml.Token, error) {
	if s.buffered != nil || s.bufferedErr != nil {
		tok, err := s.buffered, s.bufferedErr
		s.buffered, s.bufferedErr = nil, nil
		return tok, err
	}

	tok, err := s.dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &ProtocolError{Msg: "malformed response: " + err.Error()}
	}
	return tok, nil
}

// joinText appends following character data to text until an element
// boundary, skipping comments, processing instructions and directives.
// The boundary token (or error) is buffered for the next call to next.
func (s *tokenStream) joinText(text xml.CharData) xml.CharData {
	for {
		tok, err := s.read()
		if err != nil {
			s.bufferedErr = err
			return text
		}
		switch t := tok.(type) {
		case xml.CharData:
			text = append(text, t...)
		case xml.Comment, xml.ProcInst, xml.Directive:
		default:
			s.buffered = tok
			return text
		}
	}
}

// current returns the innermost open element, or "" outside the root.
func (s *tokenStream) current() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1]
}

func checkStat(rsp xml.StartElement) error {
	var stat string
	for _, attr := range rsp.Attr {
		if attr.Name.Local == attrStat {
			stat = attr.Value
			break
		}
	}
	if stat != statOK {
		return statusError(stat)
	}
	return nil
}

// VerifyStatus checks that the document's root is an rsp element whose stat
// attribute is exactly "ok".
func VerifyStatus(doc []byte) error {
	s := newTokenStream(doc)
	for {
		tok, err := s.next()
		if errors.Is(err, io.EOF) {
			return &ProtocolError{Msg: "missing rsp element"}
		}
		if err != nil {
			return err
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != elemResponse {
				return &ProtocolError{Msg: fmt.Sprintf("unexpected root element <%s>", start.Name.Local)}
			}
			return nil
		}
	}
}

// ExtractText returns the text of the first character data whose directly
// enclosing element is tag. found is false when the document has no such
// text. Any rsp element passed on the way has its status verified, so a
// failed response is reported even when the caller only wants one field.
func ExtractText(doc []byte, tag string) (text string, found bool, err error) {
	s := newTokenStream(doc)
	for {
		tok, err := s.next()
		if errors.Is(err, io.EOF) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		if data, ok := tok.(xml.CharData); ok && s.current() == tag {
			return string(data), true, nil
		}
	}
}

// Parser turns response documents into typed values.
type Parser struct {
	// CarryOverFields reproduces the legacy channel list behaviour: pending
	// fields are not reset when a new channel element opens, so a channel
	// missing a sub-element silently inherits the previous channel's value.
	// By default every channel must carry id, name, number and type.
	CarryOverFields bool
}

type channelFields uint8

const (
	fieldID channelFields = 1 << iota
	fieldName
	fieldNumber
	fieldType

	allChannelFields = fieldID | fieldName | fieldNumber | fieldType
)

// missing names the first absent field in f.
func (f channelFields) missing() string {
	switch {
	case f&fieldID == 0:
		return elemChannelID
	case f&fieldName == 0:
		return elemChannelName
	case f&fieldNumber == 0:
		return elemChannelNumber
	default:
		return elemChannelType
	}
}

func unsetChannel() ChannelEntry {
	return ChannelEntry{ChannelID: -1, Number: -1, Type: -1}
}

// ExtractChannelList parses a channel.list response in a single pass.
// Entries are returned in document order; duplicates are kept.
func (p Parser) ExtractChannelList(doc []byte) ([]ChannelEntry, error) {
	s := newTokenStream(doc)
	pending := unsetChannel()
	var have channelFields
	channels := make([]ChannelEntry, 0)

	for {
		tok, err := s.next()
		if errors.Is(err, io.EOF) {
			return channels, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case elemChannel:
				if !p.CarryOverFields {
					pending = unsetChannel()
					have = 0
				}
			case elemChannelName:
				// An empty <name/> produces no character data.
				if !p.CarryOverFields {
					pending.Name = ""
					have |= fieldName
				}
			}

		case xml.EndElement:
			if t.Name.Local != elemChannel {
				continue
			}
			if !p.CarryOverFields && have != allChannelFields {
				field := have.missing()
				return nil, &ProtocolError{Field: field, Msg: "channel entry missing " + field}
			}
			channels = append(channels, pending)

		case xml.CharData:
			raw := string(t)
			switch s.current() {
			case elemChannelID:
				if pending.ChannelID, err = parseChannelInt(elemChannelID, raw); err != nil {
					return nil, err
				}
				have |= fieldID
			case elemChannelName:
				pending.Name = strings.TrimSpace(raw)
				have |= fieldName
			case elemChannelNumber:
				if pending.Number, err = parseChannelInt(elemChannelNumber, raw); err != nil {
					return nil, err
				}
				have |= fieldNumber
			case elemChannelType:
				if pending.Type, err = parseChannelInt(elemChannelType, raw); err != nil {
					return nil, err
				}
				have |= fieldType
			}
		}
	}
}

// ExtractChannelList parses a channel.list response with the default Parser.
func ExtractChannelList(doc []byte) ([]ChannelEntry, error) {
	return Parser{}.ExtractChannelList(doc)
}

func parseChannelInt(field, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalidFieldError(field, raw)
	}
	return v, nil
}
