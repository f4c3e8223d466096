package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"shop-service/internal/model"
	"shop-service/internal/service"
	"shop-service/internal/testutil"
	"shop-service/pkg/config"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RouterSuite struct {
	suite.Suite
	cfg        *config.Config
	db         *gorm.DB
	e          *echo.Echo
	adminToken string
	userToken  string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	logger.SetLogger(zap.NewNop())
}

func (s *RouterSuite) SetupTest() {
	s.cfg = &config.Config{
		JWT:       config.JWTConfig{SigningKey: "test", AccessTTL: 5 * time.Minute, RefreshTTL: time.Hour},
		Catalog:   config.CatalogConfig{PageSize: 2},
		RateLimit: config.RateLimitConfig{LoginLimit: 100, LoginPeriod: time.Minute},
	}
	s.db = testutil.NewTestDB(s.T())
	s.e = New(Deps{Config: s.cfg, DB: s.db, Log: zap.NewNop()})

	auth := service.NewAuthService(s.db, jwtutil.NewJWTUtil(&s.cfg.JWT), zap.NewNop())
	_, err := auth.CreateUser(context.Background(), "admin", "adminpw", true)
	s.Require().NoError(err)
	_, err = auth.CreateUser(context.Background(), "user", "userpw", false)
	s.Require().NoError(err)

	s.adminToken = s.login("admin", "adminpw")
	s.userToken = s.login("user", "userpw")
}

func (s *RouterSuite) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *RouterSuite) login(username, password string) string {
	rec := s.do(http.MethodPost, "/api/login/", "", echo.Map{"username": username, "password": password})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		AccessExp    int64  `json:"access_exp"`
		Message      string `json:"message"`
	}
	s.decode(rec, &resp)
	s.Require().Equal("login success", resp.Message)
	s.Require().NotEmpty(resp.RefreshToken)
	s.Require().Greater(resp.AccessExp, time.Now().Unix())
	return resp.AccessToken
}

func (s *RouterSuite) createProduct(body echo.Map) model.Product {
	rec := s.do(http.MethodPost, "/api/products", s.adminToken, body)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var p model.Product
	s.decode(rec, &p)
	return p
}

func phone(name string, brand, category interface{}, price, quantity int) echo.Map {
	return echo.Map{
		"name":     name,
		"brand":    brand,
		"type":     category,
		"price":    price,
		"quantity": quantity,
		"img":      name + ".jpg",
	}
}

func (s *RouterSuite) TestLoginFailure() {
	rec := s.do(http.MethodPost, "/api/login", "", echo.Map{"username": "admin", "password": "nope"})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Body.String(), "invalid credentials")
}

func (s *RouterSuite) TestRefreshToken() {
	rec := s.do(http.MethodPost, "/api/login", "", echo.Map{"username": "user", "password": "userpw"})
	s.Require().Equal(http.StatusOK, rec.Code)
	var pair map[string]interface{}
	s.decode(rec, &pair)

	rec = s.do(http.MethodPost, "/api/token/refresh", "", echo.Map{"refresh": pair["refresh_token"]})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Contains(rec.Body.String(), "access_token")

	rec = s.do(http.MethodPost, "/api/token/refresh", "", echo.Map{"refresh": pair["access_token"]})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestCatalogAccessGate() {
	body := phone("Galaxy", 1, 2, 500, 3)

	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/api/products", "", body).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/api/products", s.userToken, body).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/products", "not-a-token", nil).Code)

	p := s.createProduct(body)
	s.Equal("samsung", p.Brand)
	s.Equal("sale", p.Category)

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/products/", "", nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/products", s.userToken, nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, "/api/products/1", s.userToken, nil).Code)
}

func (s *RouterSuite) TestCreateProductCodesAsStrings() {
	p := s.createProduct(phone("Redmi", "3", "1", 200, 1))
	s.Equal("redmi", p.Brand)
	s.Equal("hot", p.Category)
}

func (s *RouterSuite) TestCreateProductUnknownCode() {
	rec := s.do(http.MethodPost, "/api/products", s.adminToken, phone("X", 8, 1, 1, 1))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "unknown brand code")

	rec = s.do(http.MethodGet, "/api/products?query_all", "", nil)
	s.Equal("[]\n", rec.Body.String())
}

func (s *RouterSuite) TestUpdateProduct() {
	p := s.createProduct(phone("Mi", 2, 1, 300, 4))

	rec := s.do(http.MethodPatch, "/api/products/"+itoa(p.ID), s.adminToken, echo.Map{"type": 3, "price": 350})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var got model.Product
	s.decode(rec, &got)
	s.Equal("new", got.Category)
	s.Equal("xiaomi", got.Brand)
	s.Equal(int64(350), got.Price)

	rec = s.do(http.MethodPut, "/api/products/"+itoa(p.ID), s.adminToken, echo.Map{"brand": 5})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/products/999", s.adminToken, echo.Map{"name": "x"})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterSuite) TestListProductsPagination() {
	for i, name := range []string{"a", "b", "c"} {
		s.createProduct(phone(name, 0, 1, 100*(i+1), 1))
	}

	rec := s.do(http.MethodGet, "/api/products?ordering=-price", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var page struct {
		Count    int             `json:"count"`
		Next     *string         `json:"next"`
		Previous *string         `json:"previous"`
		Results  []model.Product `json:"results"`
	}
	s.decode(rec, &page)
	s.Equal(3, page.Count)
	s.Require().Len(page.Results, 2)
	s.Equal("c", page.Results[0].Name)
	s.Require().NotNil(page.Next)
	s.Equal("http://example.com/api/products?ordering=-price&page=2", *page.Next)
	s.Nil(page.Previous)

	rec = s.do(http.MethodGet, "/api/products?ordering=-price&page=2", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	page.Next, page.Previous = nil, nil
	s.decode(rec, &page)
	s.Require().Len(page.Results, 1)
	s.Nil(page.Next)
	s.Require().NotNil(page.Previous)
	s.Equal("http://example.com/api/products?ordering=-price", *page.Previous)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/products?page=9", "", nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/products?min_price=abc", "", nil).Code)

	rec = s.do(http.MethodGet, "/api/products?query_all=1&max_price=200", "", nil)
	var all []model.Product
	s.decode(rec, &all)
	s.Len(all, 2)
}

func (s *RouterSuite) TestOrderFlow() {
	p := s.createProduct(phone("Pixel", 0, 2, 100, 5))

	rec := s.do(http.MethodPost, "/api/orders/", "", echo.Map{
		"name":             "Chi",
		"phone":            "0912",
		"address":          "Da Nang",
		"ordered_products": []echo.Map{{"product": p.ID, "quantity": 3}},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var order model.Order
	s.decode(rec, &order)
	s.Equal(int64(300), order.TotalPrice)

	rec = s.do(http.MethodGet, "/api/products/"+itoa(p.ID), "", nil)
	var stored model.Product
	s.decode(rec, &stored)
	s.Equal(2, stored.Quantity)

	rec = s.do(http.MethodGet, "/api/orders/"+itoa(order.ID), "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var view map[string]interface{}
	s.decode(rec, &view)
	s.Equal("Chi", view["name"])
	s.Equal("Da Nang", view["address"])
	s.EqualValues(300, view["total_price"])
	s.Contains(view, "created_at")
	s.Equal([]interface{}{
		map[string]interface{}{"name": "Pixel", "price": float64(100), "type": "sale", "brand": "iphone", "quantity": float64(3)},
	}, view["products"])

	// too many units: rejected, stock untouched
	rec = s.do(http.MethodPost, "/api/orders", "", echo.Map{
		"ordered_products": []echo.Map{{"product": p.ID, "quantity": 3}},
	})
	s.Equal(http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodGet, "/api/orders", "", nil)
	var views []map[string]interface{}
	s.decode(rec, &views)
	s.Len(views, 1)

	// referenced products cannot be deleted
	s.Equal(http.StatusConflict, s.do(http.MethodDelete, "/api/products/"+itoa(p.ID), s.adminToken, nil).Code)

	rec = s.do(http.MethodPatch, "/api/orders/"+itoa(order.ID), "", echo.Map{"phone": "0999"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "0999")

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/orders/"+itoa(order.ID), "", nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/orders/"+itoa(order.ID), "", nil).Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/products/"+itoa(p.ID), s.adminToken, nil).Code)
}

func (s *RouterSuite) TestOrderValidation() {
	rec := s.do(http.MethodPost, "/api/orders", "", echo.Map{"name": "nobody"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/orders", "", echo.Map{
		"ordered_products": []echo.Map{{"product": 42, "quantity": 1}},
	})
	s.Equal(http.StatusNotFound, rec.Code)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/orders/abc", "", nil).Code)
}

func (s *RouterSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "healthy")
}

func (s *RouterSuite) TestLoginRateLimited() {
	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := *s.cfg
	cfg.RateLimit = config.RateLimitConfig{LoginLimit: 1, LoginPeriod: time.Minute}
	e := New(Deps{Config: &cfg, DB: s.db, Redis: client, Log: zap.NewNop()})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(`{"username":"admin","password":"adminpw"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	s.Equal([]int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
