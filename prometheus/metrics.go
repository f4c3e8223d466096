package prometheus

import (
	"shop-service/pkg/config"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   *prometheus.CounterVec
	AccessDeniedCounter *prometheus.CounterVec
	RateLimitedCounter  prometheus.Counter

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Product metrics
	ProductOperationsCounter *prometheus.CounterVec
	ProductInventoryGauge    *prometheus.GaugeVec

	// Order metrics
	OrdersPlacedCounter    prometheus.Counter
	OrderValueHistogram    prometheus.Histogram
	StockRejectionsCounter *prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics with configuration.
// Only the first call registers collectors.
func InitMetrics(config *config.Config) {
	initOnce.Do(func() {
		register(config.Metrics.Prefix)
	})
}

func register(prefix string) {
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthSuccessCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		},
	)

	AuthErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors by reason",
		},
		[]string{"reason"},
	)

	AccessDeniedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_access_denied_total",
			Help: "Total number of requests rejected by the access gate",
		},
		[]string{"method", "reason"},
	)

	RateLimitedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limited_total",
			Help: "Total number of requests rejected by the login rate limiter",
		},
	)

	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	ProductOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_product_operations_total",
			Help: "Total number of product operations",
		},
		[]string{"operation"},
	)

	ProductInventoryGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_product_inventory",
			Help: "Current inventory level for products",
		},
		[]string{"product_id", "product_name", "category"},
	)

	OrdersPlacedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_orders_placed_total",
			Help: "Total number of orders committed",
		},
	)

	OrderValueHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_order_total_price",
			Help:    "Distribution of order total prices",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		},
	)

	StockRejectionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_stock_rejections_total",
			Help: "Total number of orders rejected for insufficient stock",
		},
		[]string{"product_id"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if DbOperationDuration == nil {
			return
		}
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordHTTPRequest records the count and duration of a served request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if HttpRequestsTotal == nil {
		return
	}
	code := strconv.Itoa(status)
	HttpRequestsTotal.WithLabelValues(method, path, code).Inc()
	HttpRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// RecordAuthAttempt increments the login attempt counter
func RecordAuthAttempt() {
	if AuthAttemptsCounter != nil {
		AuthAttemptsCounter.Inc()
	}
}

// RecordAuthSuccess increments the successful login counter
func RecordAuthSuccess() {
	if AuthSuccessCounter != nil {
		AuthSuccessCounter.Inc()
	}
}

// RecordAuthError increments the auth error counter for the given reason
func RecordAuthError(reason string) {
	if AuthErrorsCounter != nil {
		AuthErrorsCounter.WithLabelValues(reason).Inc()
	}
}

// RecordAccessDenied increments the access gate rejection counter
func RecordAccessDenied(method, reason string) {
	if AccessDeniedCounter != nil {
		AccessDeniedCounter.WithLabelValues(method, reason).Inc()
	}
}

// RecordRateLimited increments the rate limiter rejection counter
func RecordRateLimited() {
	if RateLimitedCounter != nil {
		RateLimitedCounter.Inc()
	}
}

// RecordProductOperation increments the counter for product operations
func RecordProductOperation(operation string) {
	if ProductOperationsCounter != nil {
		ProductOperationsCounter.WithLabelValues(operation).Inc()
	}
}

// UpdateProductInventory updates the gauge for product inventory. A product
// keeps one series; a rename or recategorisation replaces the old one.
func UpdateProductInventory(productID uint, productName string, category string, count int) {
	if ProductInventoryGauge == nil {
		return
	}
	id := strconv.FormatUint(uint64(productID), 10)
	ProductInventoryGauge.DeletePartialMatch(prometheus.Labels{"product_id": id})
	ProductInventoryGauge.WithLabelValues(id, productName, category).Set(float64(count))
}

// RemoveProductInventory drops the inventory series of a deleted product
func RemoveProductInventory(productID uint) {
	if ProductInventoryGauge == nil {
		return
	}
	id := strconv.FormatUint(uint64(productID), 10)
	ProductInventoryGauge.DeletePartialMatch(prometheus.Labels{"product_id": id})
}

// RecordOrderPlaced records a committed order and its total
func RecordOrderPlaced(totalPrice int64) {
	if OrdersPlacedCounter == nil {
		return
	}
	OrdersPlacedCounter.Inc()
	OrderValueHistogram.Observe(float64(totalPrice))
}

// RecordStockRejection records an order rejected because of a product's stock
func RecordStockRejection(productID uint) {
	if StockRejectionsCounter != nil {
		StockRejectionsCounter.WithLabelValues(strconv.FormatUint(uint64(productID), 10)).Inc()
	}
}
