package oracle

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

const (
	soapEnvelopeNS = "http://www.w3.org/2003/05/soap-envelope"
	publicReportNS = "http://xmlns.oracle.com/oxp/service/PublicReportService"
)

func writeEscaped(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}

func envelopeStart(buf *bytes.Buffer) {
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString(`<soap:Envelope xmlns:soap="` + soapEnvelopeNS + `" xmlns:pub="` + publicReportNS + `">`)
	buf.WriteString(`<soap:Header/><soap:Body>`)
}

func envelopeEnd(buf *bytes.Buffer) {
	buf.WriteString(`</soap:Body></soap:Envelope>`)
}

func runReportEnvelope(reportPath string, params map[string]string) []byte {
	var buf bytes.Buffer
	envelopeStart(&buf)
	buf.WriteString(`<pub:runReport><pub:reportRequest><pub:parameterNameValues>`)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		buf.WriteString(`<pub:item><pub:name>`)
		writeEscaped(&buf, name)
		buf.WriteString(`</pub:name><pub:values><pub:item>`)
		writeEscaped(&buf, params[name])
		buf.WriteString(`</pub:item></pub:values></pub:item>`)
	}

	buf.WriteString(`</pub:parameterNameValues><pub:reportAbsolutePath>`)
	writeEscaped(&buf, reportPath)
	buf.WriteString(`</pub:reportAbsolutePath><pub:sizeOfDataChunkDownload>1</pub:sizeOfDataChunkDownload>`)
	buf.WriteString(`</pub:reportRequest></pub:runReport>`)
	envelopeEnd(&buf)
	return buf.Bytes()
}

func downloadChunkEnvelope(fileID string, beginIdx, size int) []byte {
	var buf bytes.Buffer
	envelopeStart(&buf)
	buf.WriteString(`<pub:downloadReportDataChunk><pub:fileID>`)
	writeEscaped(&buf, fileID)
	buf.WriteString(`</pub:fileID><pub:beginIdx>`)
	buf.WriteString(strconv.Itoa(beginIdx))
	buf.WriteString(`</pub:beginIdx><pub:size>`)
	buf.WriteString(strconv.Itoa(size))
	buf.WriteString(`</pub:size></pub:downloadReportDataChunk>`)
	envelopeEnd(&buf)
	return buf.Bytes()
}

// soapElements collects the text of the named elements, matched by local
// name, plus any SOAP fault text.
type soapElements struct {
	values map[string]string
	fault  string
}

var errSOAPFault = errors.New("soap fault")

func scanSOAP(body []byte, names ...string) (soapElements, error) {
	out := soapElements{values: make(map[string]string, len(names))}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		inFault bool
		text    strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("parse soap response: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Fault" {
				inFault = true
			}
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			name := t.Name.Local
			value := strings.TrimSpace(text.String())
			if wanted[name] {
				if _, seen := out.values[name]; !seen {
					out.values[name] = value
				}
			}
			if inFault && value != "" && (name == "Text" || name == "faultstring" || name == "Reason") && out.fault == "" {
				out.fault = value
			}
			if name == "Fault" {
				inFault = false
				if out.fault == "" {
					out.fault = "unspecified fault"
				}
			}
			text.Reset()
		}
	}
	if out.fault != "" {
		return out, fmt.Errorf("%w: %s", errSOAPFault, out.fault)
	}
	return out, nil
}
