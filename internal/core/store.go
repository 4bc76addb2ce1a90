package core

import (
	"sort"
	"sync"
	"time"

	"bandkeeper/pkg/domain"
)

// CollectionType is the type tag reported by Info.
const CollectionType = "ordered list of bands"

// Info summarizes the collection.
type Info struct {
	Type          string    `json:"type"`
	InitializedAt time.Time `json:"initialized_at"`
	Count         int       `json:"count"`
	NextID        int64     `json:"next_id"`
}

// GenreDirection selects which side of a genre CountByGenre counts.
type GenreDirection int

// Count directions relative to the reference genre.
const (
	GenreBelow GenreDirection = iota
	GenreAbove
)

// MemoryStore is the authoritative in-memory band collection. Every method
// runs under a single store-wide mutex, so operations never observe each
// other's partial effects. Returned bands are always copies.
type MemoryStore struct {
	mu       sync.Mutex
	bands    []domain.Band
	initDate time.Time
	nextID   int64
	nowFn    func() time.Time
}

// NewMemoryStore constructs an empty store initialized now.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		nextID: 1,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	s.initDate = s.nowFn()
	return s
}

// SetClock overrides the time source used for creation timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

// Seed replaces the collection with a loaded one. Duplicate identifiers are
// reported and leave the store untouched. The allocator is re-synced after a
// successful seed.
func (s *MemoryStore) Seed(bands []domain.Band, initializedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, dup := firstDuplicateID(bands); dup {
		return domain.Errorf(domain.KindDuplicateIDDetected, "band id %d appears more than once in loaded collection", id)
	}
	for _, b := range bands {
		if b.ID <= 0 {
			return domain.Errorf(domain.KindMalformedRequest, "loaded band %q has non-positive id %d", b.Name, b.ID)
		}
		if err := b.Validate(); err != nil {
			return err
		}
	}
	s.bands = cloneBands(bands)
	if !initializedAt.IsZero() {
		s.initDate = initializedAt
	}
	s.resyncLocked()
	return nil
}

// Info reports the type tag, initialization date and element count.
func (s *MemoryStore) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{Type: CollectionType, InitializedAt: s.initDate, Count: len(s.bands), NextID: s.nextID}
}

// Len returns the number of stored bands.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bands)
}

// List returns a copy of the ordered collection.
func (s *MemoryStore) List() []domain.Band {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneBands(s.bands)
}

// Snapshot returns the durable form of the collection taken atomically.
func (s *MemoryStore) Snapshot() domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Collection{Bands: cloneBands(s.bands), InitializedAt: s.initDate}
}

// Add appends b as supplied; the caller is responsible for its identifier,
// which must not already be held.
func (s *MemoryStore) Add(b domain.Band) error {
	if err := validateStored(b); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.uniqueLocked(b.ID); err != nil {
		return err
	}
	s.bands = append(s.bands, b.Clone())
	s.bumpLocked(b.ID)
	return nil
}

// Create assigns the next identifier and the creation timestamp, then
// appends the band.
func (s *MemoryStore) Create(b domain.Band) (domain.Band, error) {
	if err := b.Validate(); err != nil {
		return domain.Band{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b = s.stampLocked(b)
	s.bands = append(s.bands, b)
	return b.Clone(), nil
}

// InsertAt inserts b at index, shifting successors. Valid indexes are
// 0..Len() inclusive.
func (s *MemoryStore) InsertAt(index int, b domain.Band) error {
	if err := validateStored(b); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index > len(s.bands) {
		return domain.IndexError(index, len(s.bands))
	}
	if err := s.uniqueLocked(b.ID); err != nil {
		return err
	}
	s.insertLocked(index, b.Clone())
	s.bumpLocked(b.ID)
	return nil
}

// CreateAt assigns identifier and timestamp and inserts the band at index.
func (s *MemoryStore) CreateAt(index int, b domain.Band) (domain.Band, error) {
	if err := b.Validate(); err != nil {
		return domain.Band{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index > len(s.bands) {
		return domain.Band{}, domain.IndexError(index, len(s.bands))
	}
	b = s.stampLocked(b)
	s.insertLocked(index, b)
	return b.Clone(), nil
}

// Get returns the band at index.
func (s *MemoryStore) Get(index int) (domain.Band, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.bands) {
		return domain.Band{}, domain.IndexError(index, len(s.bands))
	}
	return s.bands[index].Clone(), nil
}

// Set replaces the band at index and returns the replaced element. The slot
// keeps its identifier and creation timestamp.
func (s *MemoryStore) Set(index int, b domain.Band) (domain.Band, error) {
	if err := b.Validate(); err != nil {
		return domain.Band{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.bands) {
		return domain.Band{}, domain.IndexError(index, len(s.bands))
	}
	prev := s.bands[index]
	s.bands[index] = keepIdentity(prev, b)
	return prev.Clone(), nil
}

// GetByID returns the band with the given identifier.
func (s *MemoryStore) GetByID(id int64) (domain.Band, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfLocked(id); i >= 0 {
		return s.bands[i].Clone(), nil
	}
	return domain.Band{}, domain.NotFoundError(id)
}

// ReplaceByID replaces the band with the given identifier in place and
// returns both the replaced and the stored band. It is a no-op returning
// false when the identifier is absent. The stored band keeps its identifier
// and creation timestamp.
func (s *MemoryStore) ReplaceByID(id int64, b domain.Band) (prev, next domain.Band, ok bool, err error) {
	if err := b.Validate(); err != nil {
		return domain.Band{}, domain.Band{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfLocked(id)
	if i < 0 {
		return domain.Band{}, domain.Band{}, false, nil
	}
	prev = s.bands[i]
	s.bands[i] = keepIdentity(prev, b)
	return prev.Clone(), s.bands[i].Clone(), true, nil
}

// RemoveByID removes the band with the given identifier. It is a no-op
// returning false when the identifier is absent.
func (s *MemoryStore) RemoveByID(id int64) (domain.Band, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfLocked(id)
	if i < 0 {
		return domain.Band{}, false
	}
	removed := s.bands[i]
	s.bands = append(s.bands[:i], s.bands[i+1:]...)
	return removed, true
}

// Remove drops every band structurally equal to value and returns them.
func (s *MemoryStore) Remove(value domain.Band) []domain.Band {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []domain.Band
	kept := s.bands[:0]
	for _, b := range s.bands {
		if b.Equal(value) {
			removed = append(removed, b)
			continue
		}
		kept = append(kept, b)
	}
	clear(s.bands[len(kept):])
	s.bands = kept
	return removed
}

// RemoveLast drops the last band. It is a no-op on an empty collection.
func (s *MemoryStore) RemoveLast() (domain.Band, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bands) == 0 {
		return domain.Band{}, false
	}
	last := s.bands[len(s.bands)-1]
	s.bands = s.bands[:len(s.bands)-1]
	return last, true
}

// Clear removes every band and returns them.
func (s *MemoryStore) Clear() []domain.Band {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.bands
	s.bands = nil
	return removed
}

// Sort reorders the collection by the natural band order.
func (s *MemoryStore) Sort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.bands, func(i, j int) bool { return s.bands[i].Compare(s.bands[j]) < 0 })
}

// SortByGenre returns the bands ordered by genre ascending without touching
// the stored order. Bands without a genre come first; ties keep their
// relative order.
func (s *MemoryStore) SortByGenre() []domain.Band {
	s.mu.Lock()
	out := cloneBands(s.bands)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Genre, out[j].Genre
		if a == nil {
			return b != nil
		}
		return b != nil && *a < *b
	})
	return out
}

// CountGreaterThanGenre counts bands whose genre is strictly LESS than
// genre. The comparison direction is kept as clients already rely on it;
// use CountByGenre to pick a direction explicitly. Bands without a genre are
// never counted.
func (s *MemoryStore) CountGreaterThanGenre(genre domain.MusicGenre) int {
	return s.CountByGenre(genre, GenreBelow)
}

// CountByGenre counts bands whose genre is strictly below or strictly above
// genre. Bands without a genre are never counted.
func (s *MemoryStore) CountByGenre(genre domain.MusicGenre, dir GenreDirection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bands {
		if b.Genre == nil {
			continue
		}
		c := b.Genre.Compare(genre)
		if (dir == GenreBelow && c < 0) || (dir == GenreAbove && c > 0) {
			n++
		}
	}
	return n
}

// FilterLessThanSingles returns bands with a present singles count below n.
func (s *MemoryStore) FilterLessThanSingles(n int) []domain.Band {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Band
	for _, b := range s.bands {
		if b.SinglesCount != nil && *b.SinglesCount < n {
			out = append(out, b.Clone())
		}
	}
	return out
}

// ContainsDuplicateIDs reports whether two or more bands share an identifier.
func (s *MemoryStore) ContainsDuplicateIDs() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, dup := firstDuplicateID(s.bands)
	return dup
}

// AllocateNextID re-syncs the allocator from a full scan (max id + 1, or 1
// when empty) and returns the new next identifier.
func (s *MemoryStore) AllocateNextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resyncLocked()
	return s.nextID
}

func (s *MemoryStore) stampLocked(b domain.Band) domain.Band {
	b = b.Clone()
	b.ID = s.nextID
	s.nextID++
	b.CreationDate = s.nowFn()
	return b
}

func (s *MemoryStore) insertLocked(index int, b domain.Band) {
	s.bands = append(s.bands, domain.Band{})
	copy(s.bands[index+1:], s.bands[index:])
	s.bands[index] = b
}

// bumpLocked keeps the allocator ahead of caller-assigned identifiers.
func (s *MemoryStore) bumpLocked(id int64) {
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

func (s *MemoryStore) resyncLocked() {
	var maxID int64
	for _, b := range s.bands {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	s.nextID = maxID + 1
}

func (s *MemoryStore) uniqueLocked(id int64) error {
	if s.indexOfLocked(id) >= 0 {
		return domain.Errorf(domain.KindDuplicateIDDetected, "band id %d is already in the collection", id)
	}
	return nil
}

func (s *MemoryStore) indexOfLocked(id int64) int {
	for i, b := range s.bands {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func keepIdentity(prev, next domain.Band) domain.Band {
	next = next.Clone()
	next.ID = prev.ID
	next.CreationDate = prev.CreationDate
	return next
}

func validateStored(b domain.Band) error {
	if b.ID <= 0 {
		return domain.Errorf(domain.KindMalformedRequest, "band id must be positive, got %d", b.ID)
	}
	return b.Validate()
}

func firstDuplicateID(bands []domain.Band) (int64, bool) {
	seen := make(map[int64]struct{}, len(bands))
	for _, b := range bands {
		if _, ok := seen[b.ID]; ok {
			return b.ID, true
		}
		seen[b.ID] = struct{}{}
	}
	return 0, false
}

func cloneBands(in []domain.Band) []domain.Band {
	if in == nil {
		return nil
	}
	out := make([]domain.Band, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}
