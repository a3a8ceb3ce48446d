package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/rmrk-team/rmrk-substrate-sub000/api/rest"
	"github.com/rmrk-team/rmrk-substrate-sub000/audit"
	"github.com/rmrk-team/rmrk-substrate-sub000/cache"
	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/base"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/collection"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/market"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/nft"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/property"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/resource"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"github.com/rmrk-team/rmrk-substrate-sub000/scheduler"
	"github.com/rmrk-team/rmrk-substrate-sub000/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const testAdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with the whole engine wired
// together, mirroring the dependency wiring in main.go.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Ledger *ledger.GormLedger
	Server *httptest.Server
	URL    string
	Sec    config.SecurityConfig
}

// NewTestServer creates a fully wired engine server for integration
// testing.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	params := config.DefaultChain()

	led := ledger.New(logger)
	rec := event.NewRecorder(pubsub, logger)

	resourceSvc := resource.NewService(db, led, rec, params, logger)
	nftSvc := nft.NewService(db, led, resourceSvc, rec, params, logger)
	collectionSvc := collection.NewService(db, led, rec, params, logger)
	propertySvc := property.NewService(db, led, rec, params, logger)
	baseSvc := base.NewService(db, led, rec, params, logger)
	marketSvc := market.NewService(db, led, nftSvc, rec, params, logger)
	sched := scheduler.New(logger)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	authH := apirest.NewAuthHandler(db, c, sec)
	collectionH := apirest.NewCollectionHandler(db, collectionSvc)
	nftH := apirest.NewNftHandler(db, nftSvc)
	propertyH := apirest.NewPropertyHandler(db, propertySvc)
	resourceH := apirest.NewResourceHandler(db, resourceSvc)
	baseH := apirest.NewBaseHandler(db, baseSvc)
	marketH := apirest.NewMarketHandler(db, marketSvc)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	adminH := apirest.NewAdminHandler(db, led, marketSvc, sched, auditSvc, logger)

	authed := mw.Auth(sec, c)
	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", authed, authH.Logout)
		authG.POST("/refresh", authed, authH.Refresh)
		authG.GET("/me", authed, authH.Me)

		colG := api.Group("/collections")
		colG.GET("", collectionH.List)
		colG.GET("/:cid", collectionH.Get)
		colG.Use(authed)
		colG.POST("", collectionH.Create)
		colG.POST("/:cid/lock", collectionH.Lock)
		colG.DELETE("/:cid", collectionH.Destroy)
		colG.POST("/:cid/issuer", collectionH.ChangeIssuer)

		colPropG := api.Group("/collections/:cid/properties")
		colPropG.GET("", propertyH.List)
		colPropG.Use(authed)
		colPropG.PUT("", propertyH.Set)
		colPropG.DELETE("/:key", propertyH.Remove)
		colPropG.DELETE("", propertyH.RemoveAll)

		nftG := api.Group("/nfts")
		nftG.GET("/:cid/:nid", nftH.Get)
		nftG.GET("/:cid/:nid/children", nftH.Children)
		nftG.GET("/:cid/:nid/resources", resourceH.List)
		nftG.GET("/:cid/:nid/priorities", resourceH.Priorities)
		nftG.GET("/:cid/:nid/properties", propertyH.List)
		nftG.Use(authed)
		nftG.POST("", nftH.Mint)
		nftG.POST("/:cid/:nid/send", nftH.Send)
		nftG.POST("/:cid/:nid/accept", nftH.Accept)
		nftG.POST("/:cid/:nid/reject", nftH.Reject)
		nftG.DELETE("/:cid/:nid", nftH.Burn)
		nftG.PUT("/:cid/:nid/properties", propertyH.Set)
		nftG.DELETE("/:cid/:nid/properties/:key", propertyH.Remove)
		nftG.DELETE("/:cid/:nid/properties", propertyH.RemoveAll)
		nftG.POST("/:cid/:nid/resources", resourceH.Add)
		nftG.POST("/:cid/:nid/resources/:rid/accept", resourceH.Accept)
		nftG.PUT("/:cid/:nid/resources/:rid", resourceH.Replace)
		nftG.DELETE("/:cid/:nid/resources/:rid", resourceH.Remove)
		nftG.POST("/:cid/:nid/resources/:rid/accept-removal", resourceH.AcceptRemoval)
		nftG.PUT("/:cid/:nid/priorities", resourceH.SetPriority)

		baseG := api.Group("/bases")
		baseG.GET("/:id/parts", baseH.Parts)
		baseG.GET("/:id/themes", baseH.Themes)
		baseG.Use(authed)
		baseG.POST("", baseH.Create)
		baseG.POST("/:id/issuer", baseH.ChangeIssuer)
		baseG.PUT("/:id/slots/:slot/equippable", baseH.SetEquippable)
		baseG.POST("/:id/slots/:slot/equippable/:collection", baseH.AddEquippable)
		baseG.DELETE("/:id/slots/:slot/equippable/:collection", baseH.RemoveEquippable)
		baseG.POST("/:id/themes", baseH.AddTheme)

		api.POST("/equip", authed, baseH.Equip)

		api.GET("/listings", marketH.Listings)

		mktG := api.Group("/market")
		mktG.GET("/:cid/:nid/offers", marketH.Offers)
		mktG.Use(authed)
		mktG.POST("/:cid/:nid/list", marketH.List)
		mktG.POST("/:cid/:nid/unlist", marketH.Unlist)
		mktG.POST("/:cid/:nid/buy", marketH.Buy)
		mktG.POST("/:cid/:nid/offers", marketH.MakeOffer)
		mktG.DELETE("/:cid/:nid/offers/:maker", marketH.WithdrawOffer)
		mktG.POST("/:cid/:nid/offers/:maker/accept", marketH.AcceptOffer)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(nil))
		adminG.Use(apirest.AdminAuth(testAdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/blocks/advance", adminH.AdvanceBlock)
		adminG.POST("/credit", adminH.Credit)
		adminG.POST("/tokens/:cid/:nid/freeze", adminH.FreezeToken)
		adminG.PUT("/market/owner", adminH.SetMarketOwner)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.GET("/events/:trace", adminH.Events)
	}

	server := httptest.NewServer(r)
	return &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Ledger: led,
		Server: server,
		URL:    server.URL,
		Sec:    sec,
	}
}

// Close shuts down the test server.
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, "POST", path, body, bearer(token))
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, "GET", path, nil, bearer(token))
}

// Put sends a PUT request with JSON body and optional Bearer token.
func (ts *TestServer) Put(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, "PUT", path, body, bearer(token))
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, "DELETE", path, nil, bearer(token))
}

// AdminPost sends a POST request carrying the admin key.
func (ts *TestServer) AdminPost(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, "POST", path, body, map[string]string{"X-Admin-Key": testAdminKey})
}

// AdminPut sends a PUT request carrying the admin key.
func (ts *TestServer) AdminPut(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, "PUT", path, body, map[string]string{"X-Admin-Key": testAdminKey})
}

// AdminGet sends a GET request carrying the admin key.
func (ts *TestServer) AdminGet(t *testing.T, path string) *http.Response {
	t.Helper()
	return ts.do(t, "GET", path, nil, map[string]string{"X-Admin-Key": testAdminKey})
}

func bearer(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and
// account id.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	token = result["token"].(string)
	accountID = int64(result["account_id"].(float64))
	return
}

// Credit funds an account through the admin faucet.
func (ts *TestServer) Credit(t *testing.T, accountID, amount int64) {
	t.Helper()
	resp := ts.AdminPost(t, "/api/admin/credit", map[string]interface{}{
		"account_id": accountID,
		"amount":     amount,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// FreeBalance reads an account's free balance through /api/auth/me.
func (ts *TestServer) FreeBalance(t *testing.T, token string) int64 {
	t.Helper()
	resp := ts.Get(t, "/api/auth/me", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	return int64(result["free"].(float64))
}

// UniqueID returns a short unique string suitable for usernames.
var testCounter uint64

func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
