// Package caldav implements the calendar fetch source: a minimal
// CalDAV client that issues calendar-query REPORTs over one calendar
// collection and turns the returned calendar-data into raw occurrences.
package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"time"

	"calnotify/internal/config"
	appLog "calnotify/internal/log"
	"calnotify/internal/model"
)

const icalTimeLayout = "20060102T150405Z"

// Client fetches VEVENT occurrences from a single CalDAV calendar
// collection using HTTP basic auth.
type Client struct {
	httpClient *http.Client
	url        string
	username   string
	password   string
}

// NewClient creates a CalDAV client for the configured calendar.
func NewClient(cfg config.CalDAVConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        cfg.URL,
		username:   cfg.Username,
		password:   cfg.Password,
	}
}

// FetchWindow retrieves all event occurrences overlapping
// [start, end). The REPORT asks the server to expand recurrences; for
// servers that ignore the expand request, masters still carrying an
// RRULE are expanded locally over the same window.
//
// A failed fetch returns an error and no occurrences; the caller keeps
// the previous snapshot in that case.
func (c *Client) FetchWindow(ctx context.Context, start, end time.Time) ([]model.RawOccurrence, error) {
	if c.url == "" {
		return nil, errors.New("caldav URL is not configured")
	}

	query := calendarQuery{
		Prop: queryProp{
			GetETag: &struct{}{},
			CalendarData: &calendarData{
				Expand: &expand{
					Start: start.UTC().Format(icalTimeLayout),
					End:   end.UTC().Format(icalTimeLayout),
				},
			},
		},
		Filter: queryFilter{
			CompFilter: compFilter{
				Name: "VCALENDAR",
				CompFilter: &compFilter{
					Name: "VEVENT",
					TimeRange: &timeRange{
						Start: start.UTC().Format(icalTimeLayout),
						End:   end.UTC().Format(icalTimeLayout),
					},
				},
			},
		},
	}

	ms, err := c.doREPORT(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]parsedEvent, 0)
	for _, resp := range ms.Responses {
		if resp.PropStat.Prop.CalendarData == "" {
			continue
		}
		evs, perr := parseCalendarData([]byte(resp.PropStat.Prop.CalendarData))
		if perr != nil {
			// One unparsable object must not sink the whole fetch.
			appLog.Warn("skipping unparsable calendar object", "href", resp.Href, "err", perr)
			continue
		}
		events = append(events, evs...)
	}

	occurrences := toRawOccurrences(events, start, end)
	appLog.Info("caldav fetch completed",
		"url", redactURL(c.url),
		"objects", len(ms.Responses),
		"occurrences", len(occurrences),
	)
	return occurrences, nil
}

// doREPORT executes a CalDAV calendar-query REPORT request.
func (c *Client) doREPORT(ctx context.Context, query calendarQuery) (*multiStatus, error) {
	body, err := xml.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal REPORT query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "REPORT", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create REPORT request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", "1")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute REPORT request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, fmt.Errorf("unexpected REPORT status: %s", resp.Status)
	}

	var ms multiStatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("failed to decode REPORT response: %w", err)
	}
	return &ms, nil
}

// XML structs for calendar-query (RFC 4791).

type calendarQuery struct {
	XMLName xml.Name    `xml:"urn:ietf:params:xml:ns:caldav calendar-query"`
	Prop    queryProp   `xml:"DAV: prop"`
	Filter  queryFilter `xml:"urn:ietf:params:xml:ns:caldav filter"`
}

type queryProp struct {
	GetETag      *struct{}     `xml:"DAV: getetag"`
	CalendarData *calendarData `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
}

type calendarData struct {
	Expand *expand `xml:"urn:ietf:params:xml:ns:caldav expand,omitempty"`
}

type expand struct {
	Start string `xml:"start,attr"`
	End   string `xml:"end,attr"`
}

type queryFilter struct {
	CompFilter compFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
}

type compFilter struct {
	Name       string      `xml:"name,attr"`
	TimeRange  *timeRange  `xml:"urn:ietf:params:xml:ns:caldav time-range,omitempty"`
	CompFilter *compFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter,omitempty"`
}

type timeRange struct {
	Start string `xml:"start,attr"`
	End   string `xml:"end,attr"`
}

// multiStatus represents a CalDAV REPORT multistatus response.
type multiStatus struct {
	XMLName   xml.Name `xml:"DAV: multistatus"`
	Responses []struct {
		Href     string `xml:"DAV: href"`
		PropStat struct {
			Prop struct {
				CalendarData string `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
				ETag         string `xml:"DAV: getetag"`
			} `xml:"DAV: prop"`
			Status string `xml:"DAV: status"`
		} `xml:"DAV: propstat"`
	} `xml:"DAV: response"`
}

// redactURL hides sensitive parts of a calendar URL for logging.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "caldav://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	return u[:j] + redactedSuffix
}
