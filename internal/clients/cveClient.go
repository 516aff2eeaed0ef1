package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gocvss20 "github.com/pandatix/go-cvss/20"
	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
	"github.com/sony/gobreaker"

	cache "github.com/oss-posture/posture/internal/caching"
	"github.com/oss-posture/posture/internal/configuration"
	"github.com/oss-posture/posture/internal/vulnerability"
)

// nvdTimeLayout is the timestamp format of the NVD 2.0 api.
const nvdTimeLayout = "2006-01-02T15:04:05.000"

type CveClientService interface {
	vulnerability.VulnDatabase
}

type CveClient struct {
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	baseUrl *url.URL
	apiKey  string
	cache   *cache.Cache
}

func NewCveClient(config *configuration.Config, cache *cache.Cache) (*CveClient, error) {
	client := &http.Client{
		Timeout: configuration.RequestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	cbSettings := gobreaker.Settings{
		Name:        "cve-client",
		MaxRequests: 5,
		Interval:    3 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	baseUrl, err := url.Parse(config.CveClientSettings.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("error parsing cve base url: %w", err)
	}

	return &CveClient{
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		baseUrl: baseUrl,
		apiKey:  config.NvdApiKey(),
		cache:   cache,
	}, nil
}

type nvdResponse struct {
	Vulnerabilities []struct {
		Cve nvdCve `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCve struct {
	ID         string `json:"id"`
	Published  string `json:"published"`
	References []struct {
		Url string `json:"url"`
	} `json:"references"`
	Metrics struct {
		CvssMetricV31 []nvdMetric `json:"cvssMetricV31"`
		CvssMetricV30 []nvdMetric `json:"cvssMetricV30"`
		CvssMetricV2  []nvdMetric `json:"cvssMetricV2"`
	} `json:"metrics"`
}

type nvdMetric struct {
	CvssData struct {
		BaseScore    *float64 `json:"baseScore"`
		VectorString string   `json:"vectorString"`
	} `json:"cvssData"`
}

// SearchByKeyword queries the NVD for every CVE mentioning the keyword.
func (c *CveClient) SearchByKeyword(ctx context.Context, keyword string) ([]vulnerability.SearchMatch, error) {
	response, err := c.fetch(ctx, url.Values{"keywordSearch": {keyword}})
	if err != nil {
		return nil, err
	}

	matches := make([]vulnerability.SearchMatch, 0, len(response.Vulnerabilities))
	for _, entry := range response.Vulnerabilities {
		matches = append(matches, vulnerability.SearchMatch{
			ID:            entry.Cve.ID,
			ReferenceURLs: referenceUrls(entry.Cve),
		})
	}

	return matches, nil
}

// Lookup fetches the full record of one CVE, memoized per identifier.
func (c *CveClient) Lookup(ctx context.Context, cveID string) (vulnerability.CveDetail, error) {
	cached, err := c.cache.GetOrCreate("cve:"+cveID, func() (interface{}, error) {
		record, err := c.lookupCve(ctx, cveID)
		if err != nil {
			return nil, err
		}

		detail := vulnerability.CveDetail{ReferenceURLs: referenceUrls(*record)}
		if published, err := time.Parse(nvdTimeLayout, record.Published); err == nil {
			detail.Published = published
		}

		return detail, nil
	})
	if err != nil {
		return vulnerability.CveDetail{}, err
	}

	return cached.(vulnerability.CveDetail), nil
}

// BaseScore resolves the CVSS base score of one CVE, preferring the newest
// metric version and falling back to computing the score from the vector
// when the record carries none. Nil means the CVE is unscored.
func (c *CveClient) BaseScore(ctx context.Context, cveID string) (*float64, error) {
	record, err := c.lookupCve(ctx, cveID)
	if err != nil {
		return nil, err
	}

	ordered := make([]nvdMetric, 0, 3)
	ordered = append(ordered, record.Metrics.CvssMetricV31...)
	ordered = append(ordered, record.Metrics.CvssMetricV30...)
	ordered = append(ordered, record.Metrics.CvssMetricV2...)

	for _, metric := range ordered {
		if metric.CvssData.BaseScore != nil {
			return metric.CvssData.BaseScore, nil
		}
		if score, ok := scoreFromVector(metric.CvssData.VectorString); ok {
			return &score, nil
		}
	}

	return nil, nil
}

// lookupCve fetches and memoizes the raw NVD record of one CVE. Lookup and
// BaseScore share the same cached roundtrip.
func (c *CveClient) lookupCve(ctx context.Context, cveID string) (*nvdCve, error) {
	cached, err := c.cache.GetOrCreate("nvd:"+cveID, func() (interface{}, error) {
		response, err := c.fetch(ctx, url.Values{"cveId": {cveID}})
		if err != nil {
			return nil, err
		}
		if len(response.Vulnerabilities) == 0 {
			return nil, fmt.Errorf("%w: %s not found in the NVD", vulnerability.ErrLookupFailure, cveID)
		}

		record := response.Vulnerabilities[0].Cve
		return &record, nil
	})
	if err != nil {
		return nil, err
	}

	return cached.(*nvdCve), nil
}

func (c *CveClient) fetch(ctx context.Context, query url.Values) (*nvdResponse, error) {
	requestUrl := *c.baseUrl
	requestUrl.RawQuery = query.Encode()

	result, err := c.cb.Execute(func() (interface{}, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestUrl.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}
		if c.apiKey != "" {
			request.Header.Set("apiKey", c.apiKey)
		}

		response, err := c.client.Do(request)
		if err != nil {
			return nil, fmt.Errorf("%w: nvd request: %v", vulnerability.ErrLookupFailure, err)
		}
		defer response.Body.Close()

		if response.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: nvd responded %d", vulnerability.ErrLookupFailure, response.StatusCode)
		}

		var decoded nvdResponse
		if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("%w: decoding nvd response: %v", vulnerability.ErrLookupFailure, err)
		}

		return &decoded, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*nvdResponse), nil
}

func referenceUrls(record nvdCve) []string {
	urls := make([]string, 0, len(record.References))
	for _, reference := range record.References {
		urls = append(urls, reference.Url)
	}

	return urls
}

// scoreFromVector derives a base score from a CVSS vector string for
// records that publish the vector without the number.
func scoreFromVector(vector string) (float64, bool) {
	if vector == "" {
		return 0, false
	}

	if cvss, err := gocvss31.ParseVector(vector); err == nil {
		return cvss.BaseScore(), true
	}
	if cvss, err := gocvss30.ParseVector(vector); err == nil {
		return cvss.BaseScore(), true
	}
	if cvss, err := gocvss20.ParseVector(vector); err == nil {
		return cvss.BaseScore(), true
	}

	return 0, false
}
