package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/node-placeholder-scaler/pkg/models"
)

// ErrCalendarFetch 日历无法获取或无法解析
var ErrCalendarFetch = errors.New("calendar fetch failed")

const maxCalendarBytes = 16 << 20

// Client 获取ICS日历并返回某一时刻正在进行的事件
type Client struct {
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewClient 创建日历客户端
func NewClient(timeout time.Duration, logger logrus.FieldLogger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GetEvents 返回在 asOf 时刻进行中（start <= asOf < end）的事件；url 为空时没有事件
func (c *Client) GetEvents(ctx context.Context, url string, asOf time.Time) ([]models.CalendarEvent, error) {
	if url == "" {
		c.logger.Debug("No calendar configured")
		return nil, nil
	}

	cal, err := c.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarFetch, err)
	}

	events := ActiveEvents(cal, asOf, c.logger)
	c.logger.Infof("Found %d events at %s", len(events), url)
	return events, nil
}

func (c *Client) fetch(ctx context.Context, url string) (*ics.Calendar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}

	cal, err := ics.ParseCalendar(io.LimitReader(resp.Body, maxCalendarBytes))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	return cal, nil
}

// ActiveEvents 过滤出 asOf 时刻进行中的事件，按开始时间排序；无法解析时间的事件被跳过
func ActiveEvents(cal *ics.Calendar, asOf time.Time, logger logrus.FieldLogger) []models.CalendarEvent {
	var active []models.CalendarEvent
	for _, ev := range cal.Events() {
		event, err := convertEvent(ev)
		if err != nil {
			logger.WithField("uid", ev.Id()).Warnf("Skipping calendar event: %v", err)
			continue
		}
		if !event.Start.After(asOf) && asOf.Before(event.End) {
			active = append(active, event)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Start.Before(active[j].Start) })
	return active
}

func convertEvent(ev *ics.VEvent) (models.CalendarEvent, error) {
	event := models.CalendarEvent{
		UID:         ev.Id(),
		Summary:     propertyValue(ev, ics.ComponentPropertySummary),
		Description: unescapeText(propertyValue(ev, ics.ComponentPropertyDescription)),
	}

	allDay := false
	start, err := ev.GetStartAt()
	if err != nil {
		start, err = ev.GetAllDayStartAt()
		if err != nil {
			return event, fmt.Errorf("no usable start time: %w", err)
		}
		allDay = true
	}

	end, err := ev.GetEndAt()
	if err != nil {
		end, err = ev.GetAllDayEndAt()
	}
	if err != nil {
		// 没有DTEND：全天事件持续一天，其它事件视为瞬时
		if allDay {
			end = start.Add(24 * time.Hour)
		} else {
			end = start
		}
	}

	event.Start = start
	event.End = end
	return event, nil
}

func propertyValue(ev *ics.VEvent, prop ics.ComponentProperty) string {
	if p := ev.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

var textReplacer = strings.NewReplacer(
	`\n`, "\n",
	`\N`, "\n",
	`\,`, ",",
	`\;`, ";",
	`\\`, `\`,
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
)

// unescapeText 还原ICS文本转义；Google日历会用<br>表示换行
func unescapeText(s string) string {
	return textReplacer.Replace(s)
}
