package servicetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sekolah/school-api/internal/model"
	"github.com/sekolah/school-api/internal/repository"
)

// UserStore is an in-memory repository.UserRepository
type UserStore struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[int64]*model.User)}
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (s *UserStore) Create(ctx context.Context, u *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, fmt.Errorf("%w: users_username_key", repository.ErrConflict)
		}
	}
	s.nextID++
	c := *u
	c.ID = s.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.users[c.ID] = &c
	out := c
	return &out, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id int64, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	return true, nil
}

// StudentStore is an in-memory repository.StudentRepository
type StudentStore struct {
	mu       sync.Mutex
	students map[int64]*model.Student
	nextID   int64
	clock    time.Time
}

func NewStudentStore() *StudentStore {
	return &StudentStore{
		students: make(map[int64]*model.Student),
		clock:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *StudentStore) Search(ctx context.Context, term string) ([]model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Student
	for _, st := range s.students {
		if containsFold(st.Name, term) || st.NISN == term {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *StudentStore) List(ctx context.Context, f model.StudentFilter) ([]model.Student, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []model.Student
	for _, st := range s.students {
		if f.Search == "" || containsFold(st.Name, f.Search) || strings.Contains(st.NISN, f.Search) {
			matched = append(matched, *st)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *StudentStore) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.students[id]; ok {
		c := *st
		return &c, nil
	}
	return nil, nil
}

func (s *StudentStore) NISNExists(ctx context.Context, nisn string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nisnTaken(nisn, excludeID), nil
}

func (s *StudentStore) nisnTaken(nisn string, excludeID int64) bool {
	for id, st := range s.students {
		if st.NISN == nisn && id != excludeID {
			return true
		}
	}
	return false
}

func (s *StudentStore) Create(ctx context.Context, in model.StudentInput) (*model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nisnTaken(in.NISN, 0) {
		return nil, fmt.Errorf("%w: students_nisn_key", repository.ErrConflict)
	}
	s.nextID++
	s.clock = s.clock.Add(time.Minute)
	st := fromInput(in)
	st.ID = s.nextID
	st.CreatedAt = s.clock
	st.UpdatedAt = s.clock
	s.students[st.ID] = &st
	out := st
	return &out, nil
}

func (s *StudentStore) Update(ctx context.Context, id int64, in model.StudentInput) (*model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.students[id]
	if !ok {
		return nil, nil
	}
	if s.nisnTaken(in.NISN, id) {
		return nil, fmt.Errorf("%w: students_nisn_key", repository.ErrConflict)
	}
	s.clock = s.clock.Add(time.Minute)
	st := fromInput(in)
	st.ID = id
	st.CreatedAt = existing.CreatedAt
	st.UpdatedAt = s.clock
	s.students[id] = &st
	out := st
	return &out, nil
}

func (s *StudentStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return false, nil
	}
	delete(s.students, id)
	return true, nil
}

func (s *StudentStore) Stats(ctx context.Context) (*model.GraduationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats model.GraduationStats
	var sum float64
	var scored int
	for _, st := range s.students {
		stats.TotalStudents++
		if st.Graduated {
			stats.Graduated++
		} else {
			stats.NotGraduated++
		}
		if st.AverageScore != nil {
			sum += *st.AverageScore
			scored++
		}
	}
	if scored > 0 {
		stats.AverageScore = sum / float64(scored)
	}
	return &stats, nil
}

func fromInput(in model.StudentInput) model.Student {
	return model.Student{
		Name:         in.Name,
		NISN:         in.NISN,
		Class:        in.Class,
		Graduated:    in.Graduated != nil && *in.Graduated,
		AverageScore: in.AverageScore,
		Notes:        in.Notes,
	}
}

// SchoolStore is an in-memory repository.SchoolRepository holding at most one row
type SchoolStore struct {
	mu   sync.Mutex
	info *model.SchoolInfo
}

func (s *SchoolStore) Get(ctx context.Context) (*model.SchoolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return nil, nil
	}
	c := *s.info
	return &c, nil
}

func (s *SchoolStore) Upsert(ctx context.Context, in model.SchoolInfoInput) (*model.SchoolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	info := model.SchoolInfo{
		ID:           1,
		SchoolName:   in.SchoolName,
		Address:      in.Address,
		Phone:        in.Phone,
		Email:        in.Email,
		Principal:    in.Principal,
		AcademicYear: in.AcademicYear,
		About:        in.About,
		Vision:       in.Vision,
		Mission:      in.Mission,
		LogoURL:      in.LogoURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.info != nil {
		info.CreatedAt = s.info.CreatedAt
	}
	s.info = &info
	c := info
	return &c, nil
}
