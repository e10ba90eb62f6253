package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-drive/backend/internal/access"
	"github.com/aura-drive/backend/internal/models"
	"github.com/aura-drive/backend/pkg/storage"
)

type memStore struct {
	mu        sync.Mutex
	files     map[uuid.UUID]*models.File
	favorites map[uuid.UUID]map[uuid.UUID]struct{} // user -> file ids
	clock     time.Time
	createErr error
	purgeErr  map[uuid.UUID]error
	writes    int
}

func newMemStore() *memStore {
	return &memStore{
		files:     make(map[uuid.UUID]*models.File),
		favorites: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		purgeErr:  make(map[uuid.UUID]error),
	}
}

func (m *memStore) Create(_ context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.files {
		if existing.StorageRef == f.StorageRef {
			return fmt.Errorf("%w: storage ref already registered", models.ErrInvalidInput)
		}
	}
	m.clock = m.clock.Add(time.Second)
	f.ID = uuid.New()
	f.CreatedAt, f.UpdatedAt = m.clock, m.clock
	cp := *f
	m.files[f.ID] = &cp
	m.writes++
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) ListByOrganization(_ context.Context, orgID uuid.UUID, deleted bool) ([]models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.File{}
	for _, f := range m.files {
		if f.OrganizationID == orgID && f.ShouldDelete == deleted {
			list = append(list, *f)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (m *memStore) SetShouldDelete(_ context.Context, id uuid.UUID, shouldDelete bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return models.ErrNotFound
	}
	f.ShouldDelete = shouldDelete
	m.writes++
	return nil
}

func (m *memStore) ListMarkedForDeletion(_ context.Context) ([]models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.File{}
	for _, f := range m.files {
		if f.ShouldDelete {
			list = append(list, *f)
		}
	}
	return list, nil
}

func (m *memStore) Purge(ctx context.Context, id uuid.UUID, beforeDelete func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || !f.ShouldDelete {
		return ErrNotFlagged
	}
	if beforeDelete != nil {
		if err := beforeDelete(ctx); err != nil {
			return err
		}
	}
	if err := m.purgeErr[id]; err != nil {
		return err
	}
	delete(m.files, id)
	for _, favs := range m.favorites {
		delete(favs, id)
	}
	return nil
}

func (m *memStore) FavoriteFileIDs(_ context.Context, userID, orgID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]struct{})
	for id := range m.favorites[userID] {
		if f, ok := m.files[id]; ok && f.OrganizationID == orgID {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) favorite(userID, fileID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.favorites[userID] == nil {
		m.favorites[userID] = make(map[uuid.UUID]struct{})
	}
	m.favorites[userID][fileID] = struct{}{}
}

func (m *memStore) has(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[id]
	return ok
}

type memBlobs struct {
	mu         sync.Mutex
	blobs      map[string]bool
	resolveErr map[string]error
	deleteErr  map[string]error
	uploadErr  error
	deleted    []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{
		blobs:      make(map[string]bool),
		resolveErr: make(map[string]error),
		deleteErr:  make(map[string]error),
	}
}

func (b *memBlobs) RegisterUpload(_ context.Context, orgID uuid.UUID, filename, contentType string) (*storage.UploadTarget, error) {
	ft, ok := storage.FileTypeForUpload(contentType, filename)
	if !ok {
		return nil, errors.New("unsupported")
	}
	key := storage.FileKey(orgID.String(), filename)
	return &storage.UploadTarget{UploadURL: "https://blobs.test/put/" + key, StorageRef: key, FileType: ft}, nil
}

func (b *memBlobs) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	b.put(key)
	return key, nil
}

func (b *memBlobs) ResolveURL(_ context.Context, ref string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.resolveErr[ref]; err != nil {
		return "", err
	}
	return "https://blobs.test/get/" + ref, nil
}

func (b *memBlobs) DeleteBlob(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.deleteErr[ref]; err != nil {
		return err
	}
	if !b.blobs[ref] {
		return storage.ErrBlobNotFound
	}
	delete(b.blobs, ref)
	b.deleted = append(b.deleted, ref)
	return nil
}

func (b *memBlobs) put(ref string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[ref] = true
}

func (b *memBlobs) exists(ref string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blobs[ref]
}

type memOracle struct {
	memberships map[uuid.UUID][]models.Membership
}

func (o *memOracle) MembershipsForUser(_ context.Context, userID uuid.UUID) ([]models.Membership, error) {
	return o.memberships[userID], nil
}

func (o *memOracle) join(userID, orgID uuid.UUID, role models.OrgRole) {
	o.memberships[userID] = append(o.memberships[userID], models.Membership{OrganizationID: orgID, Role: role})
}

type fixture struct {
	store  *memStore
	blobs  *memBlobs
	oracle *memOracle
	svc    *Service
}

func newFixture() *fixture {
	fx := &fixture{
		store:  newMemStore(),
		blobs:  newMemBlobs(),
		oracle: &memOracle{memberships: make(map[uuid.UUID][]models.Membership)},
	}
	fx.svc = NewService(fx.store, fx.store, fx.blobs, access.NewEvaluator(fx.oracle, nil), Options{}, nil)
	return fx
}

func (fx *fixture) member(orgID uuid.UUID, role models.OrgRole) *models.Actor {
	a := &models.Actor{UserID: uuid.New()}
	fx.oracle.join(a.UserID, orgID, role)
	return a
}

// seed creates a live file owned by actor with an existing blob.
func (fx *fixture) seed(actor *models.Actor, orgID uuid.UUID, name string, ft models.FileType) uuid.UUID {
	ref := storage.FileKey(orgID.String(), name)
	fx.blobs.put(ref)
	id, err := fx.svc.CreateFile(context.Background(), actor, orgID, name, ref, ft)
	if err != nil {
		panic(err)
	}
	return id
}
