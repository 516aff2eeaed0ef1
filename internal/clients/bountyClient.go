package clients

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/net/html"

	"github.com/oss-posture/posture/internal/configuration"
	"github.com/oss-posture/posture/internal/vulnerability"
)

// reportedOnPrefix introduces the report date on a bounty page.
const reportedOnPrefix = "Reported on"

var ordinalSuffix = regexp.MustCompile(`(\d+)(st|nd|rd|th)`)

type BountyClientService interface {
	vulnerability.BountySource
}

type BountyClient struct {
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

func NewBountyClient(config *configuration.Config) *BountyClient {
	client := &http.Client{
		Timeout: configuration.RequestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	cbSettings := gobreaker.Settings{
		Name:        "bounty-client",
		MaxRequests: 5,
		Interval:    3 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &BountyClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// ReportedOn scrapes the report date off a bounty page. The page has no
// api, so the date is lifted from the first text node carrying the
// "Reported on" marker.
func (c *BountyClient) ReportedOn(ctx context.Context, reportUrl string) (time.Time, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, reportUrl, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}

		response, err := c.client.Do(request)
		if err != nil {
			return nil, fmt.Errorf("%w: bounty request: %v", vulnerability.ErrLookupFailure, err)
		}
		defer response.Body.Close()

		if response.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: bounty page responded %d", vulnerability.ErrLookupFailure, response.StatusCode)
		}

		document, err := html.Parse(response.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing bounty page: %v", vulnerability.ErrLookupFailure, err)
		}

		reported, ok := findReportedOn(document)
		if !ok {
			return nil, fmt.Errorf("%w: no report date on %s", vulnerability.ErrLookupFailure, reportUrl)
		}

		return reported, nil
	})
	if err != nil {
		return time.Time{}, err
	}

	return result.(time.Time), nil
}

// findReportedOn walks the document for a text node like
// "Reported on Mar 3rd 2022" and parses the trailing date.
func findReportedOn(node *html.Node) (time.Time, bool) {
	if node.Type == html.TextNode {
		text := strings.TrimSpace(node.Data)
		if strings.HasPrefix(text, reportedOnPrefix) {
			if reported, err := parseReportDate(strings.TrimSpace(text[len(reportedOnPrefix):])); err == nil {
				return reported, true
			}
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if reported, ok := findReportedOn(child); ok {
			return reported, true
		}
	}

	return time.Time{}, false
}

func parseReportDate(raw string) (time.Time, error) {
	cleaned := ordinalSuffix.ReplaceAllString(raw, "$1")
	return time.Parse("Jan 2 2006", cleaned)
}
