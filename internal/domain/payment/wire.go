package payment

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Provider action codes carried in the request document.
const (
	commandDoDeal = "doDeal"
	actionSale    = "J5"
	actionRefund  = "J6"
)

// saleRequest is the ashrait document for a sale transaction. Element order
// matters to the provider, so fields are declared in wire order.
type saleRequest struct {
	XMLName  xml.Name `xml:"ashrait"`
	Username string   `xml:"request>username"`
	Password string   `xml:"request>password"`
	Command  string   `xml:"request>command"`
	Terminal string   `xml:"request>Masof"`
	Action   string   `xml:"request>action"`
	Sum      int64    `xml:"request>sum"`
	Currency string   `xml:"request>currency"`

	CardNumber     string `xml:"request>cardNumber"`
	CardExpiration string `xml:"request>cardExpiration"` // MMYY
	CVV            string `xml:"request>CVV2"`

	ID       string `xml:"request>id"`
	Comments string `xml:"request>comments"`
	Info     string `xml:"request>info,omitempty"`
}

// refundRequest is the ashrait document for a refund. Instead of card data it
// carries the original transaction id.
type refundRequest struct {
	XMLName  xml.Name `xml:"ashrait"`
	Username string   `xml:"request>username"`
	Password string   `xml:"request>password"`
	Command  string   `xml:"request>command"`
	Terminal string   `xml:"request>Masof"`
	Action   string   `xml:"request>action"`
	Sum      int64    `xml:"request>sum"`

	TransactionID string `xml:"request>transactionId"`
	ID            string `xml:"request>id"`
}

// minorUnits converts a major-unit amount to the provider's integer minor
// units (agorot). Rounds half away from zero, so 19.999 becomes 2000.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// maskCard renders a card number safe for logs: last four digits only, or
// just the mask when the number is shorter than four digits.
func maskCard(cardNumber string) string {
	if len(cardNumber) < 4 {
		return "****"
	}
	return "****" + cardNumber[len(cardNumber)-4:]
}

// parseResponse decodes a provider response into a flat field→text map.
// The provider nests fields at inconsistent depths, so every leaf element
// (one with character data and no children) is captured regardless of where
// it sits in the tree.
func parseResponse(body []byte) (map[string]string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(body)))

	fields := make(map[string]string)
	var current string
	var text strings.Builder
	leaf := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "decode response")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
			text.Reset()
			leaf = true
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if leaf && t.Name.Local == current {
				fields[current] = strings.TrimSpace(text.String())
			}
			leaf = false
		}
	}

	if len(fields) == 0 {
		return nil, errors.New("no fields in response")
	}

	return fields, nil
}

// The provider answers with field names in two casing conventions depending
// on the terminal generation. Each logical field resolves through an ordered
// alias list; the first present key wins.
var responseAliases = map[string][]string{
	"response_code":    {"responsecode", "ResponseCode"},
	"response_message": {"responsemessage", "ResponseMessage"},
	"transaction_id":   {"transactionid", "TransactionID"},
	"approval_code":    {"approvalcode", "ApprovalCode"},
}

// pick returns the value of the first alias of the logical field present in
// the parsed response, or "" when none is.
func pick(fields map[string]string, logical string) string {
	for _, key := range responseAliases[logical] {
		if v, ok := fields[key]; ok {
			return v
		}
	}
	return ""
}

// isApproved reports whether a provider response code means success. The
// code space is not fully documented, so anything other than the two known
// approval sentinels counts as a decline.
func isApproved(code string) bool {
	return code == "0" || code == "00"
}

// excerpt truncates a raw body for diagnostics.
func excerpt(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max])
}
