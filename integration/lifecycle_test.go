package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestComposableLifecycle walks the whole composable flow over HTTP:
// collection, nested mint, properties, resources, base and equipping,
// then a recursive burn.
func TestComposableLifecycle(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token, _ := ts.Login(t, UniqueID("alice"), "hunter2pass")

	resp := ts.PostJSON(t, "/api/collections", map[string]interface{}{
		"collection_id": 1,
		"symbol":        "HERO",
		"metadata":      "ipfs://heroes",
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/collections/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var col map[string]interface{}
	ReadJSON(t, resp, &col)
	require.Equal(t, "HERO", col["symbol"])

	// Equipper NFT minted to the caller, item nested directly under it.
	resp = ts.PostJSON(t, "/api/nfts", map[string]interface{}{
		"collection_id": 1,
		"nft_id":        1,
		"metadata":      "ipfs://hero/1",
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/nfts", map[string]interface{}{
		"collection_id":        1,
		"nft_id":               2,
		"parent_collection_id": 1,
		"parent_nft_id":        1,
		"metadata":             "ipfs://sword/1",
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/nfts/1/1/children", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var children map[string]interface{}
	ReadJSON(t, resp, &children)
	require.Equal(t, float64(1), children["count"])

	// Properties on the nested item.
	resp = ts.Put(t, "/api/nfts/1/2/properties", map[string]string{
		"key":   "rarity",
		"value": "epic",
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/nfts/1/2/properties", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var props map[string]interface{}
	ReadJSON(t, resp, &props)
	require.Equal(t, float64(1), props["count"])

	// Base with a fixed body part and an open slot.
	resp = ts.PostJSON(t, "/api/bases", map[string]interface{}{
		"base_type": "svg",
		"symbol":    "BODY",
		"parts": []map[string]interface{}{
			{"part_id": 1, "kind": "fixed", "src": "body.svg", "z": 0},
			{"part_id": 2, "kind": "slot", "equippable": "all", "z": 1},
		},
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]interface{}
	ReadJSON(t, resp, &created)
	baseID := uint64(created["base_id"].(float64))

	resp = ts.Get(t, fmt.Sprintf("/api/bases/%d/parts", baseID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var parts map[string]interface{}
	ReadJSON(t, resp, &parts)
	require.Equal(t, float64(2), parts["count"])

	// Composable resource on the equipper, slot resource on the item.
	resp = ts.PostJSON(t, "/api/nfts/1/1/resources", map[string]interface{}{
		"resource_id": 1,
		"kind":        "composable",
		"base_id":     baseID,
		"parts":       []uint64{1, 2},
		"src":         "hero.svg",
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/nfts/1/2/resources", map[string]interface{}{
		"resource_id":  5,
		"kind":         "slot",
		"slot_base_id": baseID,
		"slot_id":      2,
		"src":          "sword.svg",
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/equip", map[string]interface{}{
		"item_collection_id":     1,
		"item_nft_id":            2,
		"equipper_collection_id": 1,
		"equipper_nft_id":        1,
		"resource_id":            5,
		"base_id":                baseID,
		"slot_id":                2,
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/nfts/1/2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var item map[string]interface{}
	ReadJSON(t, resp, &item)
	require.Equal(t, true, item["equipped"])

	// Equipped items refuse transfers.
	stranger := UniqueID("stranger")
	_, strangerID := ts.Login(t, stranger, "hunter2pass")
	resp = ts.PostJSON(t, "/api/nfts/1/2/send", map[string]interface{}{
		"recipient": strangerID,
	}, token)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// Same call on an occupied slot unequips.
	resp = ts.PostJSON(t, "/api/equip", map[string]interface{}{
		"item_collection_id":     1,
		"item_nft_id":            2,
		"equipper_collection_id": 1,
		"equipper_nft_id":        1,
		"resource_id":            5,
		"base_id":                baseID,
		"slot_id":                2,
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/nfts/1/2", "")
	ReadJSON(t, resp, &item)
	require.Equal(t, false, item["equipped"])

	// Burning the equipper takes the nested item with it.
	resp = ts.Delete(t, "/api/nfts/1/1", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/nfts/1/1", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
	resp = ts.Get(t, "/api/nfts/1/2", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// TestNestedSendAcceptFlow covers the cross-owner pending protocol: a
// send into a foreign NFT parks the child as pending until the target's
// root owner accepts it.
func TestNestedSendAcceptFlow(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	aliceTok, aliceID := ts.Login(t, UniqueID("alice"), "hunter2pass")
	bobTok, bobID := ts.Login(t, UniqueID("bob"), "hunter2pass")

	resp := ts.PostJSON(t, "/api/collections", map[string]interface{}{
		"collection_id": 1,
		"symbol":        "NEST",
	}, aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Alice keeps token 1 and mints token 2 straight to Bob.
	resp = ts.PostJSON(t, "/api/nfts", map[string]interface{}{
		"collection_id": 1,
		"nft_id":        1,
	}, aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/nfts", map[string]interface{}{
		"collection_id": 1,
		"nft_id":        2,
		"recipient":     bobID,
	}, aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Bob pushes his token under Alice's. It lands pending.
	resp = ts.PostJSON(t, "/api/nfts/1/2/send", map[string]interface{}{
		"parent_collection_id": 1,
		"parent_nft_id":        1,
	}, bobTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var n map[string]interface{}
	resp = ts.Get(t, "/api/nfts/1/2", "")
	ReadJSON(t, resp, &n)
	require.Equal(t, true, n["pending"])

	// Bob cannot accept into a tree he does not root-own.
	resp = ts.PostJSON(t, "/api/nfts/1/2/accept", map[string]interface{}{
		"parent_collection_id": 1,
		"parent_nft_id":        1,
	}, bobTok)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/nfts/1/2/accept", map[string]interface{}{
		"parent_collection_id": 1,
		"parent_nft_id":        1,
	}, aliceTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/nfts/1/2", "")
	ReadJSON(t, resp, &n)
	require.Equal(t, false, n["pending"])
	require.Equal(t, float64(aliceID), n["root_owner"])
}

func TestMint_PermissionBoundaries(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	aliceTok, _ := ts.Login(t, UniqueID("alice"), "hunter2pass")
	bobTok, _ := ts.Login(t, UniqueID("bob"), "hunter2pass")

	resp := ts.PostJSON(t, "/api/collections", map[string]interface{}{
		"collection_id": 1,
		"symbol":        "PERM",
	}, aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Only the issuer mints.
	resp = ts.PostJSON(t, "/api/nfts", map[string]interface{}{
		"collection_id": 1,
		"nft_id":        1,
	}, bobTok)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = ts.PostJSON(t, "/api/nfts", map[string]interface{}{
		"collection_id": 1,
		"nft_id":        1,
	}, aliceTok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Only the root owner burns.
	resp = ts.Delete(t, "/api/nfts/1/1", bobTok)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Duplicate ids conflict.
	resp = ts.PostJSON(t, "/api/nfts", map[string]interface{}{
		"collection_id": 1,
		"nft_id":        1,
	}, aliceTok)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}
