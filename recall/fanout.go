package recall

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/evrec/evrec/core"
	"github.com/evrec/evrec/pipeline"
	"github.com/evrec/evrec/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 支持超时、限流、优先级合并策略。
//
// 召回源失败按降级处理：记日志、贡献空结果，不中断其他源。
type Fanout struct {
	Sources       []Source
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy string        // 合并策略：first / union / priority（优先级按 Sources 顺序）
	Log           *logrus.Logger
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		all   []*core.Item
		eg, _ = errgroup.WithContext(ctx)
	)

	// 限流：semaphore 控制并发数
	sem := make(chan struct{}, n.MaxConcurrent)
	if n.MaxConcurrent <= 0 {
		close(sem) // 无限制时直接关闭，避免阻塞
	}

	for i, src := range n.Sources {
		s := src
		priority := i // 索引越小优先级越高

		eg.Go(func() error {
			if n.MaxConcurrent > 0 {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			items, err := s.Recall(recallCtx, rctx)
			if err != nil {
				if n.Log != nil {
					n.Log.WithFields(logrus.Fields{
						"source": s.Name(),
						"error":  err,
					}).Warn("recall source failed, degrade to empty")
				}
				return nil
			}

			// 记录召回来源 label，方便 explain / 观测
			for _, it := range items {
				it.PutLabel("recall_source", utils.Label{Value: s.Name(), Source: "recall"})
				it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(priority), Source: "recall"})
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	switch n.MergeStrategy {
	case "priority":
		return n.mergeByPriority(all), nil
	case "union":
		return all, nil
	default: // "first" 或默认
		return n.mergeFirst(all), nil
	}
}

// mergeFirst 按 ID 去重，保留第一个出现的（默认策略）。
// 重复项的分量与标签并入首见项，首见项的展示字段不被覆盖。
func (n *Fanout) mergeFirst(all []*core.Item) []*core.Item {
	if !n.Dedup {
		return all
	}
	seen := make(map[string]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			old.MergeFrom(it)
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

// mergeByPriority 按优先级合并：相同 ID 时保留优先级更高的（索引更小），
// 低优先级的分量并入保留项。
func (n *Fanout) mergeByPriority(all []*core.Item) []*core.Item {
	if !n.Dedup {
		return all
	}
	seen := make(map[string]*core.Item, len(all))
	order := make([]string, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		old, exists := seen[it.ID]
		if !exists {
			seen[it.ID] = it
			order = append(order, it.ID)
			continue
		}
		if labelPriority(it) < labelPriority(old) {
			it.MergeFrom(old)
			seen[it.ID] = it
		} else {
			old.MergeFrom(it)
		}
	}
	out := make([]*core.Item, 0, len(seen))
	for _, id := range order {
		out = append(out, seen[id])
	}
	return out
}

func labelPriority(it *core.Item) int {
	lbl, ok := it.Labels["recall_priority"]
	if !ok {
		return 999
	}
	p, err := strconv.Atoi(lbl.Value)
	if err != nil {
		return 999
	}
	return p
}

var _ pipeline.Node = (*Fanout)(nil)
