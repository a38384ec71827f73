package payment

import (
	"strings"
	"testing"

	"github.com/razorpay/razorpay-go/utils"
	"github.com/stretchr/testify/require"
)

func TestSignMatchesRazorpaySDK(t *testing.T) {
	secret := "whsec_test"
	body := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`

	sig := Sign([]byte(body), []byte(secret))
	require.True(t, utils.VerifyWebhookSignature(body, sig, secret))
	require.True(t, Verify([]byte(body), []byte(secret), sig))
}

func TestVerifyClientMessage(t *testing.T) {
	secret := []byte("key_secret")
	msg := ClientMessage("order_abc", "pay_xyz")
	require.Equal(t, "order_abc|pay_xyz", string(msg))

	sig := Sign(msg, secret)
	require.True(t, utils.VerifyWebhookSignature(string(msg), sig, string(secret)))
	require.True(t, Verify(msg, secret, sig))
	require.True(t, Verify(msg, secret, strings.ToUpper(sig)), "hex case is not significant")
	require.True(t, Verify(msg, secret, " "+sig+"\n"))

	require.False(t, Verify(ClientMessage("order_abc", "pay_xyZ"), secret, sig))
	require.False(t, Verify(ClientMessage("pay_xyz", "order_abc"), secret, sig))
}

func TestVerifyRejectsSingleByteMutation(t *testing.T) {
	secret := []byte("whsec_test")
	body := []byte(`{"event":"payment.failed"}`)
	sig := Sign(body, secret)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		require.False(t, Verify(mutated, secret, sig), "mutation at byte %d verified", i)
	}

	flipped := []byte(sig)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}
	require.False(t, Verify(body, secret, string(flipped)))
}

func TestVerifyRejectsEmptyInputs(t *testing.T) {
	body := []byte("payload")
	require.False(t, Verify(body, nil, Sign(body, nil)))
	require.False(t, Verify(body, []byte("s"), ""))
	require.False(t, Verify(body, []byte("s"), "   "))
	require.False(t, Verify(body, []byte("s"), "not-hex"))
}

func TestVerifyIsSensitiveToReserialisation(t *testing.T) {
	secret := []byte("whsec_test")
	raw := []byte(`{"event": "payment.captured", "payload": {}}`)
	compact := []byte(`{"event":"payment.captured","payload":{}}`)

	sig := Sign(raw, secret)
	require.True(t, Verify(raw, secret, sig))
	require.False(t, Verify(compact, secret, sig))
}
