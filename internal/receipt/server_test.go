package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombor/scantrack/internal/extraction"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		recognizer  *mockRecognizer
		registry    *prometheus.Registry
		metrics     *Metrics
		auth        BasicAuth
		ghttpServer *ghttp.Server
		now         time.Time
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		recognizer = &mockRecognizer{result: extraction.Extracted(pharmacyText)}
		registry = prometheus.NewRegistry()
		metrics = NewMetrics(registry)
		auth = BasicAuth{}
		now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		ghttpServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	// do serves a single request through a freshly built Server
	do := func(req *http.Request) *http.Response {
		service := NewService(db, recognizer, storage, newTestPipeline(),
			WithIDGenerator(&mockIDGenerator{id: "new-id"}),
			WithTimeSource(&mockTimeSource{now: now}),
			WithMetrics(metrics),
			WithMaxUploadSize(1024),
		)
		server := NewServer(service, auth, registry)
		ghttpServer.AppendHandlers(server.ServeHTTP)

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	newRequest := func(method, path string, body io.Reader) *http.Request {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		return req
	}

	get := func(path string) *http.Response {
		return do(newRequest(http.MethodGet, path, nil))
	}

	decode := func(resp *http.Response, v any) {
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	uploadRequest := func(filename, contentType string, data []byte) *http.Request {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			header.Set("Content-Type", contentType)
		}
		part, err := writer.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req := newRequest(http.MethodPost, "/api/receipts", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	Describe("GET /health", func() {
		It("reports healthy", func() {
			resp := get("/health")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body map[string]string
			decode(resp, &body)
			Expect(body).To(HaveKeyWithValue("status", "healthy"))
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp := do(newRequest(http.MethodOptions, "/api/receipts", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})

		It("sets headers on normal responses", func() {
			resp := get("/api/receipts")
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("rejects requests without credentials", func() {
			resp := get("/api/receipts")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("rejects wrong credentials", func() {
			req := newRequest(http.MethodGet, "/api/receipts", nil)
			req.SetBasicAuth("admin", "wrong")
			Expect(do(req).StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("accepts the configured credentials", func() {
			req := newRequest(http.MethodGet, "/api/receipts", nil)
			req.SetBasicAuth("admin", "secret")
			Expect(do(req).StatusCode).To(Equal(http.StatusOK))
		})

		It("leaves the health check open", func() {
			Expect(get("/health").StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/receipts", func() {
		It("processes the upload", func() {
			resp := do(uploadRequest("scan.jpg", "image/jpeg", []byte("image")))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var receipt Receipt
			decode(resp, &receipt)
			Expect(receipt.ID).To(Equal("new-id"))
			Expect(receipt.ContentType).To(Equal("image/jpeg"))
			Expect(receipt.MerchantName).To(HaveValue(Equal("CORNER PHARMACY")))
			Expect(receipt.Items).To(HaveLen(2))
			Expect(db.receipts).To(HaveKey("new-id"))
		})

		It("infers the content type from the extension", func() {
			resp := do(uploadRequest("scan.pdf", "application/octet-stream", []byte("pdf")))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(db.receipts["new-id"].ContentType).To(Equal("application/pdf"))
		})

		It("rejects unsupported file types", func() {
			resp := do(uploadRequest("notes.txt", "text/plain", []byte("hi")))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(ContainSubstring("unsupported file type"))
		})

		It("rejects files over the size limit", func() {
			resp := do(uploadRequest("scan.jpg", "image/jpeg", make([]byte, 2048)))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(recognizer.calls).To(BeZero())
		})

		It("rejects requests without a file", func() {
			req := newRequest(http.MethodPost, "/api/receipts", strings.NewReader("plain"))
			req.Header.Set("Content-Type", "text/plain")
			Expect(do(req).StatusCode).To(Equal(http.StatusBadRequest))
		})

		When("the receipt cannot be read", func() {
			BeforeEach(func() {
				recognizer.result = extraction.Failed(errors.New("blank page"))
			})

			It("returns unprocessable entity", func() {
				resp := do(uploadRequest("scan.jpg", "image/jpeg", []byte("image")))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(storage.files).To(BeEmpty())
			})
		})
	})

	Describe("receipt routes", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{
				ID:           "r1",
				Filename:     "scan.png",
				FilePath:     "r1_scan.png",
				ContentType:  "image/png",
				MerchantName: strPtr("CAFE"),
				TotalAmount:  centsPtr(500),
				CreatedAt:    now.Add(-time.Hour),
			}
			db.receipts["r2"] = &Receipt{ID: "r2", CreatedAt: now}
			storage.files["r1_scan.png"] = []byte("png")
		})

		It("lists receipts newest first", func() {
			resp := get("/api/receipts")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var receipts []*Receipt
			decode(resp, &receipts)
			Expect(ids(receipts)).To(Equal([]string{"r2", "r1"}))
		})

		It("pages with skip and limit", func() {
			var receipts []*Receipt
			decode(get("/api/receipts?skip=1&limit=1"), &receipts)
			Expect(ids(receipts)).To(Equal([]string{"r1"}))
		})

		It("rejects a bad limit", func() {
			Expect(get("/api/receipts?limit=-1").StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("gets a receipt", func() {
			resp := get("/api/receipts/r1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var receipt Receipt
			decode(resp, &receipt)
			Expect(receipt.MerchantName).To(HaveValue(Equal("CAFE")))
		})

		It("returns 404 for unknown receipts", func() {
			Expect(get("/api/receipts/missing").StatusCode).To(Equal(http.StatusNotFound))
		})

		It("serves the uploaded file", func() {
			resp := get("/api/receipts/r1/file")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png")))
		})

		It("updates a receipt", func() {
			req := newRequest(http.MethodPut, "/api/receipts/r1",
				strings.NewReader(`{"merchant_name":"CORNER CAFE","total_amount":650}`))
			resp := do(req)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var receipt Receipt
			decode(resp, &receipt)
			Expect(receipt.MerchantName).To(HaveValue(Equal("CORNER CAFE")))
			Expect(receipt.TotalAmount).To(HaveValue(Equal(int64(650))))
		})

		It("rejects a malformed update", func() {
			req := newRequest(http.MethodPut, "/api/receipts/r1", strings.NewReader(`{`))
			Expect(do(req).StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("deletes a receipt", func() {
			resp := do(newRequest(http.MethodDelete, "/api/receipts/r1", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.receipts).NotTo(HaveKey("r1"))
			Expect(storage.files).To(BeEmpty())
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("disk error")
			})

			It("hides the cause", func() {
				resp := get("/api/receipts")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(Equal("internal server error"))
			})
		})
	})

	Describe("analytics routes", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{
				ID:          "r1",
				TotalAmount: centsPtr(700),
				Items:       []Item{{Name: "Soap", TotalPrice: 700, Category: "Shopping"}},
				CreatedAt:   now.Add(-24 * time.Hour),
			}
		})

		It("summarizes expenses", func() {
			resp := get("/api/analytics/expenses?months=1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var summary ExpenseSummary
			decode(resp, &summary)
			Expect(summary.TotalExpenses).To(Equal(int64(700)))
		})

		It("returns category stats", func() {
			var stats []CategoryStat
			decode(get("/api/analytics/categories"), &stats)
			Expect(stats).To(Equal([]CategoryStat{{Category: "Shopping", ItemCount: 1, TotalAmount: 700, AverageAmount: 700}}))
		})

		It("returns monthly trends", func() {
			var trends []MonthlyTrend
			decode(get("/api/analytics/monthly-trends?months=3"), &trends)
			Expect(trends).To(HaveLen(1))
			Expect(trends[0].Month).To(Equal("2024-02"))
		})

		It("covers twelve months of trends by default", func() {
			db.receipts["r2"] = &Receipt{
				ID:        "r2",
				Items:     []Item{{Name: "Bus pass", TotalPrice: 5000, Category: "Transportation"}},
				CreatedAt: now.AddDate(0, 0, -250),
			}

			var trends []MonthlyTrend
			decode(get("/api/analytics/monthly-trends"), &trends)
			Expect(trends).To(HaveLen(2))
			Expect(trends[0].Month).To(Equal("2023-06"))
			Expect(trends[1].Month).To(Equal("2024-02"))
		})

		It("rejects a bad months value", func() {
			Expect(get("/api/analytics/expenses?months=abc").StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/export", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{ID: "r1", CreatedAt: now}
		})

		It("downloads CSV by default", func() {
			resp := get("/api/export")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("receipts_export_20240301_120000.csv"))
		})

		It("downloads JSON", func() {
			resp := get("/api/export?format=json")
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			var doc map[string]any
			decode(resp, &doc)
			Expect(doc).To(HaveKey("export_info"))
		})

		It("rejects unknown formats", func() {
			Expect(get("/api/export?format=pdf").StatusCode).To(Equal(http.StatusBadRequest))
		})

		When("a date window is given", func() {
			BeforeEach(func() {
				db.receipts["r0"] = &Receipt{ID: "r0", CreatedAt: now.AddDate(0, -2, 0)}
			})

			It("exports only receipts created inside it", func() {
				resp := get("/api/export?format=json&start=2024-02-01&end=2024-03-01")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var doc struct {
					ExportInfo struct {
						StartDate *time.Time `json:"start_date"`
					} `json:"export_info"`
					Receipts []Receipt `json:"receipts"`
				}
				decode(resp, &doc)
				Expect(doc.ExportInfo.StartDate).To(HaveValue(BeTemporally("==", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))))
				Expect(doc.Receipts).To(HaveLen(1))
				Expect(doc.Receipts[0].ID).To(Equal("r1"))
			})

			It("rejects an unparseable date", func() {
				Expect(get("/api/export?start=March").StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("rejects a start after the end", func() {
				Expect(get("/api/export?start=2024-03-02&end=2024-03-01").StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("GET /metrics", func() {
		It("exposes processing counters", func() {
			Expect(do(uploadRequest("scan.jpg", "image/jpeg", []byte("image"))).StatusCode).To(Equal(http.StatusCreated))

			resp := get("/metrics")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(`scantrack_receipts_processed_total{status="success"} 1`))
		})
	})
})
