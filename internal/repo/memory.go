package repo

import (
	"context"
	"sync"

	"github.com/eduvision/crm/internal/domain"
	"github.com/google/uuid"
)

// Document — задача в том виде, в котором её хранит документное хранилище:
// все поля текстом, без проверки формата.
type Document map[string]string

// Поля документа scheduled_tasks.
const (
	FieldID         = "id"
	FieldType       = "task_type"
	FieldParams     = "params"
	FieldRunAt      = "run_at"
	FieldStatus     = "status"
	FieldRepeat     = "repeat"
	FieldRepeatRule = "repeat_rule"
)

// MemoryTaskStore — документное хранилище задач в памяти.
//
// Используется в тестах и при store_driver=memory. Хранит документы как есть,
// поэтому позволяет воспроизвести битые run_at и params, записанные другими клиентами.
// Порядок выборки совпадает с порядком вставки.
type MemoryTaskStore struct {
	mu   sync.Mutex
	docs []Document
}

// NewMemoryTaskStore создаёт пустое хранилище.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{}
}

// Put сохраняет документ без проверок и возвращает его ID.
func (s *MemoryTaskStore) Put(doc Document) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make(Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	if stored[FieldID] == "" {
		stored[FieldID] = uuid.NewString()
	}
	s.docs = append(s.docs, stored)
	return stored[FieldID]
}

// Raw возвращает копию документа по ID.
func (s *MemoryTaskStore) Raw(id string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		out := make(Document, len(s.docs[i]))
		for k, v := range s.docs[i] {
			out[k] = v
		}
		return out, true
	}
	return nil, false
}

// Len возвращает количество документов.
func (s *MemoryTaskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Select возвращает задачи, подходящие под фильтр.
func (s *MemoryTaskStore) Select(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []domain.Task
	for _, doc := range s.docs {
		task := documentToTask(doc)
		if f.Matches(&task) {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// Insert сохраняет новую задачу. Пустой ID заполняется UUID.
func (s *MemoryTaskStore) Insert(ctx context.Context, task *domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if s.indexOf(task.ID) >= 0 {
		return ErrAlreadyExists
	}
	s.docs = append(s.docs, taskToDocument(task))
	return nil
}

// Update применяет изменения к подходящим задачам под общим мьютексом.
func (s *MemoryTaskStore) Update(ctx context.Context, f TaskFilter, c TaskChanges) ([]domain.Task, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyChanges
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []domain.Task
	for _, doc := range s.docs {
		task := documentToTask(doc)
		if !f.Matches(&task) {
			continue
		}
		if c.Status != "" {
			doc[FieldStatus] = c.Status.String()
		}
		if c.RunAt != nil {
			doc[FieldRunAt] = domain.FormatRunAt(*c.RunAt)
		}
		changed = append(changed, documentToTask(doc))
	}
	return changed, nil
}

// DeleteByIDs удаляет задачи по ID.
func (s *MemoryTaskStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := s.docs[:0]
	deleted := 0
	for _, doc := range s.docs {
		if _, ok := drop[doc[FieldID]]; ok {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	s.docs = kept
	return deleted, nil
}

// GetByID возвращает задачу по ID.
func (s *MemoryTaskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	task := documentToTask(s.docs[i])
	return &task, nil
}

func (s *MemoryTaskStore) indexOf(id string) int {
	for i, doc := range s.docs {
		if doc[FieldID] == id {
			return i
		}
	}
	return -1
}

func documentToTask(doc Document) domain.Task {
	runAt, _ := domain.ParseRunAt(doc[FieldRunAt])
	return domain.Task{
		ID:         doc[FieldID],
		Type:       doc[FieldType],
		Params:     doc[FieldParams],
		RunAt:      runAt,
		Status:     domain.TaskStatus(doc[FieldStatus]),
		Repeat:     domain.ParseBoolText(doc[FieldRepeat]),
		RepeatRule: doc[FieldRepeatRule],
	}
}

func taskToDocument(t *domain.Task) Document {
	return Document{
		FieldID:         t.ID,
		FieldType:       t.Type,
		FieldParams:     t.Params,
		FieldRunAt:      domain.FormatRunAt(t.RunAt),
		FieldStatus:     t.Status.String(),
		FieldRepeat:     domain.FormatRepeat(t.Repeat),
		FieldRepeatRule: t.RepeatRule,
	}
}

// MemoryReservationStore — резервы и остатки в памяти.
type MemoryReservationStore struct {
	mu           sync.Mutex
	reservations map[string]domain.Reservation
	stock        map[string]domain.Stock
}

// NewMemoryReservationStore создаёт пустое хранилище.
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		reservations: make(map[string]domain.Reservation),
		stock:        make(map[string]domain.Stock),
	}
}

// GetReservation возвращает резерв по id_reserve.
func (s *MemoryReservationStore) GetReservation(_ context.Context, id string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &res, nil
}

// CreateReservation сохраняет резерв.
func (s *MemoryReservationStore) CreateReservation(_ context.Context, res *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[res.ID]; ok {
		return ErrAlreadyExists
	}
	s.reservations[res.ID] = *res
	return nil
}

// DeleteReservation удаляет резерв по id_reserve.
func (s *MemoryReservationStore) DeleteReservation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

// GetStock возвращает складской остаток товара.
func (s *MemoryReservationStore) GetStock(_ context.Context, productID string) (*domain.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stock, ok := s.stock[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return &stock, nil
}

// UpsertStock записывает складской остаток товара.
func (s *MemoryReservationStore) UpsertStock(_ context.Context, stock *domain.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stock[stock.ProductID] = *stock
	return nil
}
