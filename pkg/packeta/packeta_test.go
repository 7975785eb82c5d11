package packeta_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/eshop/pkg/packeta"
	"github.com/shashiranjanraj/eshop/pkg/testkit"
)

const apiURL = "https://packeta.test/api/rest"

func newClient() *packeta.Client {
	return packeta.New(packeta.Config{
		URL: apiURL, Password: "secret", Eshop: "eshop.cz",
		Attempts: 3, Timeout: time.Second, Backoff: time.Millisecond,
	})
}

func TestCreatePacketRetriesTransientFailures(t *testing.T) {
	mt := testkit.NewMockTransport(t)
	mt.On("POST", apiURL,
		testkit.Fail(errors.New("connection reset")),
		testkit.Respond(503, "busy"),
		testkit.Respond(200, `<response><status>ok</status><result><id>4412345678</id><barcode>Z4412345678</barcode><barcodeText>Z 441 2345 678</barcodeText></result></response>`),
	)

	res, err := newClient().CreatePacket(context.Background(), packeta.PacketAttributes{
		Number: "ES-1", Name: "Jana", Surname: "Nováková", AddressID: "1234", Value: 707, Weight: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "4412345678", res.ID)
	assert.Equal(t, "Z4412345678", res.Barcode)

	calls := mt.Calls()
	require.Len(t, calls, 3)
	body := string(calls[2].Body)
	assert.Contains(t, body, "<createPacket><apiPassword>secret</apiPassword><packetAttributes>")
	assert.Contains(t, body, "<addressId>1234</addressId>")
	assert.Contains(t, body, "<eshop>eshop.cz</eshop>")
	assert.Contains(t, calls[2].Header.Get("Content-Type"), "application/xml")
}

func TestFaultIsNotRetried(t *testing.T) {
	mt := testkit.NewMockTransport(t)
	mt.On("POST", apiURL, testkit.Respond(200,
		`<response><status>fault</status><fault>PacketAttributesFault</fault><string>Invalid addressId</string></response>`))

	_, err := newClient().CreatePacket(context.Background(), packeta.PacketAttributes{Number: "ES-2"})

	var fault *packeta.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "PacketAttributesFault", fault.Code)
	assert.Equal(t, "Invalid addressId", fault.Message)
	assert.Len(t, mt.Calls(), 1)
}

func TestClientErrorStatusIsNotRetried(t *testing.T) {
	mt := testkit.NewMockTransport(t)
	mt.On("POST", apiURL, testkit.Respond(400, "bad"))

	err := newClient().CancelPacket(context.Background(), "1")
	require.Error(t, err)
	assert.Len(t, mt.Calls(), 1)
}

func TestRetriesExhausted(t *testing.T) {
	mt := testkit.NewMockTransport(t)
	mt.On("POST", apiURL, testkit.Respond(502, ""))

	_, err := newClient().PacketStatus(context.Background(), "1")
	require.Error(t, err)
	assert.Len(t, mt.Calls(), 3)
}

func TestPacketStatus(t *testing.T) {
	mt := testkit.NewMockTransport(t)
	mt.On("POST", apiURL, testkit.Respond(200,
		`<response><status>ok</status><result><dateTime>2026-10-01T10:00:00</dateTime><statusCode>7</statusCode><codeText>delivered</codeText><statusText>Zásilka byla doručena</statusText></result></response>`))

	st, err := newClient().PacketStatus(context.Background(), "4412345678")
	require.NoError(t, err)
	assert.Equal(t, 7, st.StatusCode)
	assert.Equal(t, "delivered", st.CodeText)
	assert.Contains(t, string(mt.Calls()[0].Body), "<packetStatus><apiPassword>secret</apiPassword><packetId>4412345678</packetId></packetStatus>")
}

func TestPacketLabelPdf(t *testing.T) {
	pdf := []byte("%PDF-1.4 label")
	mt := testkit.NewMockTransport(t)
	mt.On("POST", apiURL, testkit.Respond(200,
		`<response><status>ok</status><result>`+base64.StdEncoding.EncodeToString(pdf)+`</result></response>`))

	got, err := newClient().PacketLabelPdf(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, pdf, got)
	assert.Contains(t, string(mt.Calls()[0].Body), "<format>A6 on A6</format><offset>0</offset>")
}

func TestNotConfigured(t *testing.T) {
	_, err := packeta.New(packeta.Config{URL: apiURL}).PacketStatus(context.Background(), "1")
	assert.ErrorIs(t, err, packeta.ErrNotConfigured)
}
