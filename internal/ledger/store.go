// Package ledger 持有进程内唯一的订单与发货台账，
// 每次写操作后全量快照到blob存储，启动时恢复。
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/ordertrail/potrack/internal/blob"
	"github.com/ordertrail/potrack/internal/entity"
	"go.uber.org/zap"
)

// 快照键名
const (
	keyPurchaseOrders = "purchase_orders"
	keyDispatches     = "dispatches"
	keyMaterials      = "materials"
	keyFilterFrom     = "report_filter_from"
	keyFilterTo       = "report_filter_to"
)

var (
	ErrExists   = errors.New("record already exists")
	ErrNotFound = errors.New("record not found")
)

// Store 台账存储
type Store struct {
	mu         sync.RWMutex
	pos        map[string]*entity.PurchaseOrder
	dispatches map[string]*entity.Dispatch
	materials  []string
	filterFrom string
	filterTo   string

	blobs  blob.Store
	logger *zap.Logger
}

func NewStore(blobs blob.Store, logger *zap.Logger) *Store {
	return &Store{
		pos:        make(map[string]*entity.PurchaseOrder),
		dispatches: make(map[string]*entity.Dispatch),
		materials:  append([]string(nil), entity.DefaultMaterials...),
		blobs:      blobs,
		logger:     logger,
	}
}

// Load 从blob存储恢复台账。快照缺失或损坏时保留空集合/内置默认值，
// 不让进程启动失败。
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pos []*entity.PurchaseOrder
	if s.loadJSON(ctx, keyPurchaseOrders, &pos) {
		s.pos = make(map[string]*entity.PurchaseOrder, len(pos))
		for _, po := range pos {
			s.pos[po.ID] = po
		}
	}

	var dispatches []*entity.Dispatch
	if s.loadJSON(ctx, keyDispatches, &dispatches) {
		s.dispatches = make(map[string]*entity.Dispatch, len(dispatches))
		for _, d := range dispatches {
			s.dispatches[d.ID] = d
		}
	}

	var materials []string
	if s.loadJSON(ctx, keyMaterials, &materials) && len(materials) > 0 {
		s.materials = materials
	}

	if data, err := s.blobs.Get(ctx, keyFilterFrom); err == nil {
		s.filterFrom = string(data)
	}
	if data, err := s.blobs.Get(ctx, keyFilterTo); err == nil {
		s.filterTo = string(data)
	}

	s.logger.Info("Ledger loaded",
		zap.Int("purchase_orders", len(s.pos)),
		zap.Int("dispatches", len(s.dispatches)),
		zap.Int("materials", len(s.materials)),
	)
}

func (s *Store) loadJSON(ctx context.Context, key string, out interface{}) bool {
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, blob.ErrNotExist) {
			s.logger.Warn("Failed to read snapshot, starting empty", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("Corrupt snapshot, starting empty", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// NextPOID 取现有最大数字ID加一，作废订单的ID永不复用
func (s *Store) NextPOID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for id := range s.pos {
		if n, err := strconv.Atoi(id); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// InsertPO 新增采购订单，ID已存在则报错
func (s *Store) InsertPO(ctx context.Context, po *entity.PurchaseOrder) error {
	s.mu.Lock()
	if _, ok := s.pos[po.ID]; ok {
		s.mu.Unlock()
		return ErrExists
	}
	s.pos[po.ID] = po.Clone()
	s.mu.Unlock()

	s.persist(ctx, keyPurchaseOrders)
	return nil
}

// SavePO 覆盖已有采购订单，ID不存在则报错
func (s *Store) SavePO(ctx context.Context, po *entity.PurchaseOrder) error {
	s.mu.Lock()
	if _, ok := s.pos[po.ID]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.pos[po.ID] = po.Clone()
	s.mu.Unlock()

	s.persist(ctx, keyPurchaseOrders)
	return nil
}

// FindPO 按ID查找，返回副本；不存在返回nil（此层不视为错误）
func (s *Store) FindPO(id string) *entity.PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, ok := s.pos[id]
	if !ok {
		return nil
	}
	return po.Clone()
}

// ListPOs 全部采购订单，按数字ID倒序（新单在前）
func (s *Store) ListPOs() []*entity.PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.PurchaseOrder, 0, len(s.pos))
	for _, po := range s.pos {
		out = append(out, po.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a > b
	})
	return out
}

// InsertDispatch 新增发货单，ID已存在则报错
func (s *Store) InsertDispatch(ctx context.Context, d *entity.Dispatch) error {
	s.mu.Lock()
	if _, ok := s.dispatches[d.ID]; ok {
		s.mu.Unlock()
		return ErrExists
	}
	s.dispatches[d.ID] = d.Clone()
	s.mu.Unlock()

	s.persist(ctx, keyDispatches)
	return nil
}

// SaveDispatch 覆盖已有发货单，ID不存在则报错
func (s *Store) SaveDispatch(ctx context.Context, d *entity.Dispatch) error {
	s.mu.Lock()
	if _, ok := s.dispatches[d.ID]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.dispatches[d.ID] = d.Clone()
	s.mu.Unlock()

	s.persist(ctx, keyDispatches)
	return nil
}

// FindDispatch 按ID查找发货单，不存在返回nil
func (s *Store) FindDispatch(id string) *entity.Dispatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dispatches[id]
	if !ok {
		return nil
	}
	return d.Clone()
}

// FindDispatchesByPO 某订单下全部发货单，按发货日期倒序
func (s *Store) FindDispatchesByPO(poID string) []*entity.Dispatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Dispatch
	for _, d := range s.dispatches {
		if d.POID == poID {
			out = append(out, d.Clone())
		}
	}
	sortDispatches(out)
	return out
}

// ListDispatches 全部发货单，按发货日期倒序
func (s *Store) ListDispatches() []*entity.Dispatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Dispatch, 0, len(s.dispatches))
	for _, d := range s.dispatches {
		out = append(out, d.Clone())
	}
	sortDispatches(out)
	return out
}

func sortDispatches(list []*entity.Dispatch) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].DispatchedAt.Equal(list[j].DispatchedAt) {
			return list[i].DispatchedAt.After(list[j].DispatchedAt)
		}
		return list[i].ID > list[j].ID
	})
}

// Materials 当前物料参考列表
func (s *Store) Materials() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.materials...)
}

// EnsureMaterial 未收录的规范化物料名追加到参考列表
func (s *Store) EnsureMaterial(ctx context.Context, name string) {
	canonical := entity.CanonicalMaterial(name)
	if canonical == "" {
		return
	}

	s.mu.Lock()
	for _, m := range s.materials {
		if m == canonical {
			s.mu.Unlock()
			return
		}
	}
	s.materials = append(s.materials, canonical)
	s.mu.Unlock()

	s.persist(ctx, keyMaterials)
}

// DateFilter 报表日期过滤边界（原样字符串，空串表示未设置）
func (s *Store) DateFilter() (from, to string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterFrom, s.filterTo
}

// SetDateFilter 保存报表日期过滤边界
func (s *Store) SetDateFilter(ctx context.Context, from, to string) {
	s.mu.Lock()
	s.filterFrom = from
	s.filterTo = to
	s.mu.Unlock()

	s.putBlob(ctx, keyFilterFrom, []byte(from))
	s.putBlob(ctx, keyFilterTo, []byte(to))
}

// persist 全量快照一个集合。写失败只记日志：会话内以内存态为准，
// 代价是重启后丢失本次变更。
func (s *Store) persist(ctx context.Context, key string) {
	s.mu.RLock()
	var data []byte
	var err error
	switch key {
	case keyPurchaseOrders:
		list := make([]*entity.PurchaseOrder, 0, len(s.pos))
		for _, po := range s.pos {
			list = append(list, po)
		}
		sort.Slice(list, func(i, j int) bool {
			a, _ := strconv.Atoi(list[i].ID)
			b, _ := strconv.Atoi(list[j].ID)
			return a < b
		})
		data, err = json.Marshal(list)
	case keyDispatches:
		list := make([]*entity.Dispatch, 0, len(s.dispatches))
		for _, d := range s.dispatches {
			list = append(list, d)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		data, err = json.Marshal(list)
	case keyMaterials:
		data, err = json.Marshal(s.materials)
	}
	s.mu.RUnlock()

	if err != nil {
		s.logger.Error("Failed to marshal snapshot", zap.String("key", key), zap.Error(err))
		return
	}
	s.putBlob(ctx, key, data)
}

func (s *Store) putBlob(ctx context.Context, key string, data []byte) {
	if err := s.blobs.Put(ctx, key, data); err != nil {
		s.logger.Error("Failed to persist snapshot", zap.String("key", key), zap.Error(err))
	}
}
