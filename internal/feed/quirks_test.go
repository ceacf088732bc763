package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPing(t *testing.T) {
	assert.True(t, IsPing([]byte(`{"method":"ping","id":1}`)))
	assert.True(t, IsPing([]byte(`{"ping":1690000000}`)))
	assert.False(t, IsPing([]byte(`{"topic":"orderbook.50.AAABUSDT","data":{}}`)))
}

func TestPongFor(t *testing.T) {
	assert.Equal(t, `{"method":"pong"}`, string(PongFor([]byte(`{"method":"ping","id":1}`))))
	assert.Equal(t, `{"ping":1690000000}`, string(PongFor([]byte(`{"ping":1690000000}`))))
}

func TestExtractSymbol_ExplicitField(t *testing.T) {
	got := ExtractSymbol([]byte(`{"symbol":"AAABUSDT"}`), "orderbook.50.XYZUSDT", []string{"orderbook", "50"})
	assert.Equal(t, "AAABUSDT", got)
}

func TestExtractSymbol_FromChannel(t *testing.T) {
	got := ExtractSymbol([]byte(`{}`), "orderbook@50@aaabusdt", []string{"orderbook", "50"})
	assert.Equal(t, "AAABUSDT", got)
}

func TestVenueBPerpSymbol(t *testing.T) {
	assert.Equal(t, "AAAB_USDT", VenueBPerpSymbol("AAABUSDT"))
	assert.Equal(t, "XYZ_USD", VenueBPerpSymbol("XYZUSD"))
	assert.Equal(t, "NOQUOTE", VenueBPerpSymbol("NOQUOTE"))
}

func TestNearestSupportedDepth(t *testing.T) {
	supported := []int{5, 10, 20}
	assert.Equal(t, 5, NearestSupportedDepth(3, supported))
	assert.Equal(t, 10, NearestSupportedDepth(12, supported))
	assert.Equal(t, 20, NearestSupportedDepth(50, supported))
}
