package payment

import (
	"encoding/xml"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"123.45", 12345},
		{"19.99", 1999},
		{"19.999", 2000},
		{"100", 10000},
		{"0", 0},
		{"0.005", 1},
		{"0.004", 0},
		{"1234.56", 123456},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := minorUnits(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaskCard(t *testing.T) {
	tests := []struct {
		card string
		want string
	}{
		{"4111111111111111", "****1111"},
		{"1234", "****1234"},
		{"123", "****"},
		{"", "****"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, maskCard(tt.card))
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("nested leaves captured at any depth", func(t *testing.T) {
		body := []byte(`<ashrait>
			<response>
				<responsecode>00</responsecode>
				<doDeal>
					<transactionid>TX-991</transactionid>
					<approvalcode>0012345</approvalcode>
				</doDeal>
				<responsemessage> Approved </responsemessage>
			</response>
		</ashrait>`)

		fields, err := parseResponse(body)
		require.NoError(t, err)

		assert.Equal(t, "00", fields["responsecode"])
		assert.Equal(t, "TX-991", fields["transactionid"])
		assert.Equal(t, "0012345", fields["approvalcode"])
		assert.Equal(t, "Approved", fields["responsemessage"], "character data is trimmed")
		assert.NotContains(t, fields, "response", "non-leaf elements are not fields")
	})

	t.Run("capitalized field names preserved as-is", func(t *testing.T) {
		body := []byte(`<ashrait><response><ResponseCode>0</ResponseCode><TransactionID>T1</TransactionID></response></ashrait>`)

		fields, err := parseResponse(body)
		require.NoError(t, err)

		assert.Equal(t, "0", fields["ResponseCode"])
		assert.Equal(t, "T1", fields["TransactionID"])
	})

	t.Run("malformed xml", func(t *testing.T) {
		_, err := parseResponse([]byte(`<ashrait><responsecode>00`))
		require.Error(t, err)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := parseResponse(nil)
		require.Error(t, err)
	})
}

func TestPick(t *testing.T) {
	fields := map[string]string{
		"ResponseCode":  "0",
		"transactionid": "TX-1",
		"TransactionID": "TX-2",
	}

	assert.Equal(t, "0", pick(fields, "response_code"))
	assert.Equal(t, "TX-1", pick(fields, "transaction_id"), "lowercase alias wins when both present")
	assert.Equal(t, "", pick(fields, "approval_code"))
	assert.Equal(t, "", pick(fields, "unknown_logical"))
}

func TestIsApproved(t *testing.T) {
	assert.True(t, isApproved("0"))
	assert.True(t, isApproved("00"))
	assert.False(t, isApproved("000"))
	assert.False(t, isApproved("05"))
	assert.False(t, isApproved(""))
	assert.False(t, isApproved("OK"))
}

func TestSaleRequestWireFormat(t *testing.T) {
	doc := saleRequest{
		Username: "usr",
		Password: "pwd",
		Command:  commandDoDeal,
		Terminal: "0010203",
		Action:   actionSale,
		Sum:      12345,
		Currency: CurrencyILS,

		CardNumber:     "4111111111111111",
		CardExpiration: "1227",
		CVV:            "123",

		ID:       "UNS-42",
		Comments: "Order: UNS-42",
		Info:     "Dana Cohen",
	}

	out, err := xml.Marshal(doc)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "<ashrait><request>")
	assert.Contains(t, s, "<command>doDeal</command>")
	assert.Contains(t, s, "<Masof>0010203</Masof>")
	assert.Contains(t, s, "<action>J5</action>")
	assert.Contains(t, s, "<sum>12345</sum>")
	assert.Contains(t, s, "<currency>1</currency>")
	assert.Contains(t, s, "<cardExpiration>1227</cardExpiration>")
	assert.Contains(t, s, "<CVV2>123</CVV2>")
	assert.Contains(t, s, "<info>Dana Cohen</info>")
}

func TestSaleRequestOmitsEmptyInfo(t *testing.T) {
	out, err := xml.Marshal(saleRequest{Username: "usr", Action: actionSale})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<info>")
}

func TestRefundRequestWireFormat(t *testing.T) {
	out, err := xml.Marshal(refundRequest{
		Username:      "usr",
		Password:      "pwd",
		Command:       commandDoDeal,
		Terminal:      "0010203",
		Action:        actionRefund,
		Sum:           5000,
		TransactionID: "TX-991",
		ID:            "UNS-42",
	})
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "<action>J6</action>")
	assert.Contains(t, s, "<transactionId>TX-991</transactionId>")
	assert.NotContains(t, s, "cardNumber")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt([]byte("short"), 500))
	assert.Equal(t, "abc", excerpt([]byte("abcdef"), 3))
}
