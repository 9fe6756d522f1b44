package overrides

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/node-placeholder-scaler/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrCalendarParse 事件描述不是 池名 -> 副本数 的映射
var ErrCalendarParse = errors.New("calendar event payload is not a pool mapping")

// Overrides 节点池 -> 覆盖副本数；不存在的键表示没有覆盖（区别于显式0）
type Overrides map[string]int

// Get 返回节点池的覆盖值
func (o Overrides) Get(pool string) (int, bool) {
	v, ok := o[pool]
	return v, ok
}

// Pools 按名称排序的节点池列表
func (o Overrides) Pools() []string {
	pools := make([]string, 0, len(o))
	for p := range o {
		pools = append(pools, p)
	}
	sort.Strings(pools)
	return pools
}

// ParseResult 单个事件描述的解析结果：要么 Entries 有效，要么 Err 非空
type ParseResult struct {
	Entries map[string]int
	Skipped []string // 被跳过的条目及原因
	Err     error
}

// OK 解析是否成功
func (r ParseResult) OK() bool {
	return r.Err == nil
}

// ParsePayload 解析事件描述中的 YAML 映射，只保留 [0, MaxInt32] 内的整数值
func ParsePayload(text string) ParseResult {
	if strings.TrimSpace(text) == "" {
		return ParseResult{Err: fmt.Errorf("%w: empty description", ErrCalendarParse)}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return ParseResult{Err: fmt.Errorf("%w: %v", ErrCalendarParse, err)}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return ParseResult{Err: fmt.Errorf("%w: empty document", ErrCalendarParse)}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return ParseResult{Err: fmt.Errorf("%w: got %s", ErrCalendarParse, kindName(root.Kind))}
	}

	result := ParseResult{Entries: make(map[string]int)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("line %d: key is not a pool name", key.Line))
			continue
		}
		pool := key.Value

		if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!int" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: value %q is not an integer", pool, describe(value)))
			continue
		}

		var count int
		if err := value.Decode(&count); err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", pool, err))
			continue
		}
		if count < 0 {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: negative count %d", pool, count))
			continue
		}
		if count > math.MaxInt32 {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: count %d exceeds %d", pool, count, math.MaxInt32))
			continue
		}

		// 同一事件内重复的键也取最大值
		if prev, ok := result.Entries[pool]; !ok || count > prev {
			result.Entries[pool] = count
		}
	}

	return result
}

// Resolver 合并多个日历事件的副本数覆盖
type Resolver struct {
	logger logrus.FieldLogger
}

// NewResolver 创建覆盖解析器
func NewResolver(logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		logger = l
	}
	return &Resolver{logger: logger}
}

// Resolve 逐个解析事件，单个事件失败不影响其它事件；同一节点池取最大值
func (r *Resolver) Resolve(events []models.CalendarEvent) Overrides {
	resolved := make(Overrides)

	for _, ev := range events {
		log := r.logger.WithField("event", ev.String())
		log.Info("Found event")

		parsed := ParsePayload(ev.Description)
		if !parsed.OK() {
			log.WithField("description", ev.Description).Errorf("Skipping event: %v", parsed.Err)
			continue
		}
		for _, reason := range parsed.Skipped {
			log.Infof("Skipping override entry: %s", reason)
		}

		for pool, count := range parsed.Entries {
			if prev, ok := resolved[pool]; !ok || count > prev {
				resolved[pool] = count
			}
		}
	}

	return resolved
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "document"
	}
}

func describe(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	return kindName(n.Kind)
}
