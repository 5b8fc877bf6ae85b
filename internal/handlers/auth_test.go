package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/ukydev/repair-desk/internal/auth"
	"github.com/ukydev/repair-desk/internal/db"
	"github.com/ukydev/repair-desk/internal/middleware"
	"github.com/ukydev/repair-desk/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func loginBody(t *testing.T, username, password string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(models.LoginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("Failed to marshal login request: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestAuthHandler_Login(t *testing.T) {
	authService, err := auth.NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create auth service: %v", err)
	}
	passwordHash, err := authService.HashPassword("password123")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	t.Run("successful login", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, db.UserCollection(mockUserCollection))

		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     "downtown",
			PasswordHash: passwordHash,
			Role:         models.RoleStore,
			Name:         "Downtown",
			IsActive:     true,
		}

		mockUserCollection.On("FindUserByUsername", mock.Anything, "downtown").Return(user, nil)
		mockUserCollection.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(nil)

		req := httptest.NewRequest("POST", "/api/auth/login", loginBody(t, "downtown", "password123"))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response models.LoginResponse
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		assert.NotEmpty(t, response.Token)
		assert.NotEmpty(t, response.RefreshToken)
		assert.Equal(t, user.Username, response.User.Username)
		assert.NotContains(t, w.Body.String(), "password_hash")

		claims, err := authService.ValidateToken(response.Token)
		assert.NoError(t, err)
		assert.Equal(t, "Downtown", claims.Name)
		assert.Equal(t, models.RoleStore, claims.Role)

		mockUserCollection.AssertExpectations(t)
	})

	t.Run("last login failure does not fail login", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		user := &models.User{ID: primitive.NewObjectID(), Username: "tech", PasswordHash: passwordHash, Role: models.RoleTechnician, IsActive: true}
		mockUserCollection.On("FindUserByUsername", mock.Anything, "tech").Return(user, nil)
		mockUserCollection.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(assert.AnError)

		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest("POST", "/api/auth/login", loginBody(t, "tech", "password123")))

		assert.Equal(t, http.StatusOK, w.Code)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, db.UserCollection(mockUserCollection))

		mockUserCollection.On("FindUserByUsername", mock.Anything, "ghost").Return(nil, db.ErrUserNotFound)

		req := httptest.NewRequest("POST", "/api/auth/login", loginBody(t, "ghost", "wrongpassword"))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		user := &models.User{ID: primitive.NewObjectID(), Username: "admin", PasswordHash: passwordHash, Role: models.RoleAdmin, IsActive: true}
		mockUserCollection.On("FindUserByUsername", mock.Anything, "admin").Return(user, nil)

		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest("POST", "/api/auth/login", loginBody(t, "admin", "nope")))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockUserCollection.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything)
	})

	t.Run("inactive user", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, db.UserCollection(mockUserCollection))

		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     "testuser",
			PasswordHash: passwordHash,
			IsActive:     false,
		}

		mockUserCollection.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)

		req := httptest.NewRequest("POST", "/api/auth/login", loginBody(t, "testuser", "password123"))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("bad input", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))

		tests := []struct {
			name   string
			method string
			body   string
			want   int
		}{
			{"wrong method", "GET", "", http.StatusMethodNotAllowed},
			{"invalid json", "POST", "{", http.StatusBadRequest},
			{"missing password", "POST", `{"username":"a"}`, http.StatusBadRequest},
		}
		for _, tt := range tests {
			w := httptest.NewRecorder()
			handler.Login(w, httptest.NewRequest(tt.method, "/api/auth/login", bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.want, w.Code, tt.name)
		}
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	authService, _ := auth.NewService("test-secret", time.Hour)

	t.Run("found", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		user := &models.User{ID: primitive.NewObjectID(), Username: "mod", Role: models.RoleModerator, IsActive: true}
		mockUserCollection.On("FindUserByID", mock.Anything, user.ID.Hex()).Return(user, nil)

		req := httptest.NewRequest("GET", "/api/auth/profile", nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &models.Claims{UserID: user.ID.Hex(), Role: models.RoleModerator}))
		w := httptest.NewRecorder()

		handler.GetProfile(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var got models.User
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "mod", got.Username)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("no claims", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))
		w := httptest.NewRecorder()
		handler.GetProfile(w, httptest.NewRequest("GET", "/api/auth/profile", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing user", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByID", mock.Anything, "gone").Return(nil, db.ErrUserNotFound)

		req := httptest.NewRequest("GET", "/api/auth/profile", nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &models.Claims{UserID: "gone"}))
		w := httptest.NewRecorder()

		handler.GetProfile(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func createUserBody(t *testing.T, req models.CreateUserRequest) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal create user request: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestAuthHandler_CreateUser(t *testing.T) {
	authService, _ := auth.NewService("test-secret", time.Hour)

	t.Run("store account", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		mockUserCollection.On("FindUserByUsername", mock.Anything, "downtown").Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Username == "downtown" && u.Role == models.RoleStore && u.Name == "Downtown" &&
				u.IsActive && authService.CheckPassword("password123", u.PasswordHash)
		})).Return(nil)

		w := httptest.NewRecorder()
		handler.CreateUser(w, httptest.NewRequest("POST", "/api/users", createUserBody(t, models.CreateUserRequest{
			Username: " downtown ",
			Password: "password123",
			Role:     models.RoleStore,
			Name:     "Downtown",
		})))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
		var got models.User
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "downtown", got.Username)
		assert.Equal(t, models.RoleStore, got.Role)
		assert.False(t, got.ID.IsZero())
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("existing username", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "sam").
			Return(&models.User{Username: "sam", Role: models.RoleTechnician}, nil)

		w := httptest.NewRecorder()
		handler.CreateUser(w, httptest.NewRequest("POST", "/api/users", createUserBody(t, models.CreateUserRequest{
			Username: "sam", Password: "password123", Role: models.RoleTechnician, Name: "Sam",
		})))

		assert.Equal(t, http.StatusConflict, w.Code)
		mockUserCollection.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})

	t.Run("username taken between lookup and insert", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "sam").Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("InsertUser", mock.Anything, mock.Anything).Return(db.ErrDuplicateUsername)

		w := httptest.NewRecorder()
		handler.CreateUser(w, httptest.NewRequest("POST", "/api/users", createUserBody(t, models.CreateUserRequest{
			Username: "sam", Password: "password123", Role: models.RoleTechnician, Name: "Sam",
		})))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("rejected input", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))

		tests := []struct {
			name string
			req  models.CreateUserRequest
		}{
			{"short username", models.CreateUserRequest{Username: "ab", Password: "password123", Role: models.RoleModerator}},
			{"short password", models.CreateUserRequest{Username: "mod", Password: "short", Role: models.RoleModerator}},
			{"unknown role", models.CreateUserRequest{Username: "mod", Password: "password123", Role: "manager"}},
			{"store without name", models.CreateUserRequest{Username: "uptown", Password: "password123", Role: models.RoleStore, Name: "  "}},
		}
		for _, tt := range tests {
			w := httptest.NewRecorder()
			handler.CreateUser(w, httptest.NewRequest("POST", "/api/users", createUserBody(t, tt.req)))
			assert.Equal(t, http.StatusBadRequest, w.Code, tt.name)
		}

		w := httptest.NewRecorder()
		handler.CreateUser(w, httptest.NewRequest("POST", "/api/users", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		handler.CreateUser(w, httptest.NewRequest("GET", "/api/users", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestAuthHandler_ListTechnicians(t *testing.T) {
	authService, _ := auth.NewService("test-secret", time.Hour)

	t.Run("active technicians only", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		ana := models.User{ID: primitive.NewObjectID(), Username: "ana", Name: "Ana Reyes", Role: models.RoleTechnician, IsActive: true}
		gone := models.User{ID: primitive.NewObjectID(), Username: "old", Name: "Former Tech", Role: models.RoleTechnician}
		mockUserCollection.On("FindUsersByRole", mock.Anything, models.RoleTechnician).Return([]models.User{ana, gone}, nil)

		w := httptest.NewRecorder()
		handler.ListTechnicians(w, httptest.NewRequest("GET", "/api/technicians", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var got []models.TechnicianSummary
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, []models.TechnicianSummary{{ID: ana.ID.Hex(), Name: "Ana Reyes"}}, got)
	})

	t.Run("none", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUsersByRole", mock.Anything, models.RoleTechnician).Return([]models.User{}, nil)

		w := httptest.NewRecorder()
		handler.ListTechnicians(w, httptest.NewRequest("GET", "/api/technicians", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("storage failure", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUsersByRole", mock.Anything, models.RoleTechnician).Return(nil, assert.AnError)

		w := httptest.NewRecorder()
		handler.ListTechnicians(w, httptest.NewRequest("GET", "/api/technicians", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
