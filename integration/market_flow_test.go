package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// marketScene is the common cast for trade tests: alice sells token
// (1,1), bob has funds, the treasury collects market fees.
type marketScene struct {
	ts         *TestServer
	aliceTok   string
	aliceID    int64
	bobTok     string
	bobID      int64
	treasuryID int64
}

func newMarketScene(t *testing.T, bobFunds int64) *marketScene {
	t.Helper()
	ts := NewTestServer(t)
	t.Cleanup(ts.Close)

	s := &marketScene{ts: ts}
	s.aliceTok, s.aliceID = ts.Login(t, UniqueID("alice"), "hunter2pass")
	s.bobTok, s.bobID = ts.Login(t, UniqueID("bob"), "hunter2pass")
	_, s.treasuryID = ts.Login(t, UniqueID("treasury"), "hunter2pass")

	resp := ts.AdminPut(t, "/api/admin/market/owner", map[string]interface{}{
		"owner": s.treasuryID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	ts.Credit(t, s.bobID, bobFunds)

	resp = ts.PostJSON(t, "/api/collections", map[string]interface{}{
		"collection_id": 1,
		"symbol":        "SALE",
	}, s.aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/nfts", map[string]interface{}{
		"collection_id": 1,
		"nft_id":        1,
	}, s.aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	return s
}

func (s *marketScene) listingCount(t *testing.T) float64 {
	t.Helper()
	resp := s.ts.Get(t, "/api/listings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	return result["count"].(float64)
}

func TestMarketTradeFlow(t *testing.T) {
	s := newMarketScene(t, 1_000_000)
	ts := s.ts

	resp := ts.PostJSON(t, "/api/market/1/1/list", map[string]interface{}{
		"amount": 100_000,
	}, s.aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, float64(1), s.listingCount(t))

	// A listed token is locked against transfers.
	resp = ts.PostJSON(t, "/api/nfts/1/1/send", map[string]interface{}{
		"recipient": s.bobID,
	}, s.aliceTok)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// Price protection refuses a stale expectation.
	resp = ts.PostJSON(t, "/api/market/1/1/buy", map[string]interface{}{
		"expected_amount": 90_000,
	}, s.bobTok)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/market/1/1/buy", nil, s.bobTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 0.5% market fee off the top, remainder to the seller.
	require.Equal(t, int64(900_000), ts.FreeBalance(t, s.bobTok))
	require.Equal(t, int64(99_500), ts.FreeBalance(t, s.aliceTok))

	var n map[string]interface{}
	resp = ts.Get(t, "/api/nfts/1/1", "")
	ReadJSON(t, resp, &n)
	require.Equal(t, float64(s.bobID), n["root_owner"])
	require.Equal(t, false, n["locked"])
	require.Equal(t, float64(0), s.listingCount(t))

	// The new owner can list it right back.
	resp = ts.PostJSON(t, "/api/market/1/1/list", map[string]interface{}{
		"amount": 150_000,
	}, s.bobTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestMarket_UnlistReleasesToken(t *testing.T) {
	s := newMarketScene(t, 500_000)
	ts := s.ts

	resp := ts.PostJSON(t, "/api/market/1/1/list", map[string]interface{}{
		"amount": 100_000,
	}, s.aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Only the seller can pull the listing.
	resp = ts.PostJSON(t, "/api/market/1/1/unlist", nil, s.bobTok)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/market/1/1/unlist", nil, s.aliceTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, float64(0), s.listingCount(t))

	resp = ts.PostJSON(t, "/api/market/1/1/buy", nil, s.bobTok)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// The lock is gone, transfers work again.
	resp = ts.PostJSON(t, "/api/nfts/1/1/send", map[string]interface{}{
		"recipient": s.bobID,
	}, s.aliceTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestOfferFlow(t *testing.T) {
	s := newMarketScene(t, 500_000)
	ts := s.ts

	resp := ts.PostJSON(t, "/api/market/1/1/offers", map[string]interface{}{
		"amount": 200_000,
	}, s.bobTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// The offer amount moves to reserve while it is open.
	require.Equal(t, int64(300_000), ts.FreeBalance(t, s.bobTok))

	resp = ts.Get(t, "/api/market/1/1/offers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var offers map[string]interface{}
	ReadJSON(t, resp, &offers)
	require.Equal(t, float64(1), offers["count"])

	// A stranger cannot withdraw someone else's offer.
	eveTok, _ := ts.Login(t, UniqueID("eve"), "hunter2pass")
	resp = ts.Delete(t, fmt.Sprintf("/api/market/1/1/offers/%d", s.bobID), eveTok)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Only the token owner accepts.
	resp = ts.PostJSON(t, fmt.Sprintf("/api/market/1/1/offers/%d/accept", s.bobID), nil, s.bobTok)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, fmt.Sprintf("/api/market/1/1/offers/%d/accept", s.bobID), nil, s.aliceTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Reserve consumed, fee skimmed, token moved.
	require.Equal(t, int64(300_000), ts.FreeBalance(t, s.bobTok))
	require.Equal(t, int64(199_000), ts.FreeBalance(t, s.aliceTok))

	var n map[string]interface{}
	resp = ts.Get(t, "/api/nfts/1/1", "")
	ReadJSON(t, resp, &n)
	require.Equal(t, float64(s.bobID), n["root_owner"])
}

func TestOffer_WithdrawRestoresFunds(t *testing.T) {
	s := newMarketScene(t, 500_000)
	ts := s.ts

	resp := ts.PostJSON(t, "/api/market/1/1/offers", map[string]interface{}{
		"amount": 200_000,
	}, s.bobTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, int64(300_000), ts.FreeBalance(t, s.bobTok))

	resp = ts.Delete(t, fmt.Sprintf("/api/market/1/1/offers/%d", s.bobID), s.bobTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, int64(500_000), ts.FreeBalance(t, s.bobTok))

	// Nothing left to accept.
	resp = ts.PostJSON(t, fmt.Sprintf("/api/market/1/1/offers/%d/accept", s.bobID), nil, s.aliceTok)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestMarket_OfferBelowMinimumOrBroke(t *testing.T) {
	s := newMarketScene(t, 1_000)
	ts := s.ts

	resp := ts.PostJSON(t, "/api/market/1/1/offers", map[string]interface{}{
		"amount": 49,
	}, s.bobTok)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/market/1/1/offers", map[string]interface{}{
		"amount": 2_000,
	}, s.bobTok)
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	resp.Body.Close()
}
