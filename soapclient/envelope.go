package soapclient

import "encoding/xml"

// Namespace URIs used by every SOAP envelope this transport builds. Prefixes
// are not significant to a SOAP server; only the URIs are.
const (
	nsSoapEnv = "http://schemas.xmlsoap.org/soap/envelope/"
	nsPartner = "http://exacttarget.com/wsdl/partnerAPI"
	nsXSI     = "http://www.w3.org/2001/XMLSchema-instance"
)

type fuelOAuth struct {
	XMLName xml.Name `xml:"http://exacttarget.com/wsdl/partnerAPI fueloauth"`
	Token   string   `xml:",chardata"`
}

type soapHeader struct {
	XMLName xml.Name  `xml:"http://schemas.xmlsoap.org/soap/envelope/ Header"`
	OAuth   fuelOAuth `xml:"fueloauth"`
}

type soapBody struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
	Inner   []byte   `xml:",innerxml"`
}

type soapEnvelope struct {
	XMLName xml.Name   `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Header  soapHeader `xml:"Header"`
	Body    soapBody   `xml:"Body"`
}

// SimpleFilter is a SimpleFilterPart for a Retrieve request's Filter.
type SimpleFilter struct {
	Property string
	Operator string
	Value    string
}

type filterXML struct {
	XMLName  xml.Name `xml:"http://exacttarget.com/wsdl/partnerAPI Filter"`
	XsiType  string   `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr"`
	Property string   `xml:"Property"`
	Operator string   `xml:"SimpleOperator"`
	Value    string   `xml:"Value"`
}

func (f *SimpleFilter) toXML() *filterXML {
	if f == nil {
		return nil
	}
	return &filterXML{XsiType: "SimpleFilterPart", Property: f.Property, Operator: f.Operator, Value: f.Value}
}

type retrieveRequest struct {
	XMLName    xml.Name   `xml:"http://exacttarget.com/wsdl/partnerAPI RetrieveRequest"`
	ObjectType string     `xml:"ObjectType"`
	Properties []string   `xml:"Properties"`
	Filter     *filterXML `xml:"Filter,omitempty"`
	Continue   string     `xml:"ContinueRequest,omitempty"`
}

type retrieveRequestMsg struct {
	XMLName xml.Name        `xml:"http://exacttarget.com/wsdl/partnerAPI RetrieveRequestMsg"`
	Request retrieveRequest `xml:"RetrieveRequest"`
}

// buildEnvelope marshals a complete SOAP envelope carrying the OAuth token
// in the header and the given RetrieveRequestMsg in the body.
func buildEnvelope(token string, msg retrieveRequestMsg) ([]byte, error) {
	inner, err := xml.Marshal(msg)
	if err != nil {
		return nil, err
	}
	env := soapEnvelope{
		Header: soapHeader{OAuth: fuelOAuth{Token: token}},
		Body:   soapBody{Inner: inner},
	}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// buildRetrieveEnvelope builds the initial RetrieveRequest envelope for an
// object type, property list, and optional filter.
func buildRetrieveEnvelope(token, objectType string, properties []string, filter *SimpleFilter) ([]byte, error) {
	return buildEnvelope(token, retrieveRequestMsg{
		Request: retrieveRequest{
			ObjectType: objectType,
			Properties: properties,
			Filter:     filter.toXML(),
		},
	})
}

// buildContinueEnvelope builds a ContinueRequest envelope keyed by the
// RequestID from a prior MoreDataAvailable response.
func buildContinueEnvelope(token, requestID string) ([]byte, error) {
	return buildEnvelope(token, retrieveRequestMsg{
		Request: retrieveRequest{Continue: requestID},
	})
}
