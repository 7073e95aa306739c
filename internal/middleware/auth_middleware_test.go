package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taxilink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "unit-test-secret"

func authTestRouter(userID *primitive.ObjectID, userType *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", AuthRequired(testSecret), func(c *gin.Context) {
		if raw, ok := c.Get("user_id"); ok {
			id := raw.(primitive.ObjectID)
			*userID = id
		}
		*userType = c.GetString("user_type")
		c.Status(http.StatusOK)
	})
	return router
}

func TestAuthRequiredAcceptsBearerToken(t *testing.T) {
	wantID := primitive.NewObjectID()
	token, err := utils.GenerateAccessToken(wantID, "driver", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var gotID primitive.ObjectID
	var gotType string
	router := authTestRouter(&gotID, &gotType)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", recorder.Code, recorder.Body.String())
	}
	if gotID != wantID {
		t.Error("user_id in context does not match the token subject")
	}
	if gotType != "driver" {
		t.Errorf("user_type = %q, want driver", gotType)
	}
}

func TestAuthRequiredAcceptsTokenQueryParameter(t *testing.T) {
	wantID := primitive.NewObjectID()
	token, err := utils.GenerateAccessToken(wantID, "passenger", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var gotID primitive.ObjectID
	var gotType string
	router := authTestRouter(&gotID, &gotType)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", recorder.Code, recorder.Body.String())
	}
	if gotID != wantID {
		t.Error("user_id in context does not match the token subject")
	}
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	var id primitive.ObjectID
	var userType string
	router := authTestRouter(&id, &userType)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestAuthRequiredRejectsWrongSecret(t *testing.T) {
	token, err := utils.GenerateAccessToken(primitive.NewObjectID(), "driver", "some-other-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var id primitive.ObjectID
	var userType string
	router := authTestRouter(&id, &userType)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestAuthRequiredRejectsExpiredToken(t *testing.T) {
	token, err := utils.GenerateAccessToken(primitive.NewObjectID(), "driver", testSecret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	var id primitive.ObjectID
	var userType string
	router := authTestRouter(&id, &userType)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestRoleGates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token, err := utils.GenerateAccessToken(primitive.NewObjectID(), "driver", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	router.GET("/driver", AuthRequired(testSecret), DriverRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/passenger", AuthRequired(testSecret), PassengerRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(path string) int {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, path, nil)
		request.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(recorder, request)
		return recorder.Code
	}

	if code := get("/driver"); code != http.StatusOK {
		t.Errorf("driver route for driver token: status = %d, want 200", code)
	}
	if code := get("/passenger"); code != http.StatusForbidden {
		t.Errorf("passenger route for driver token: status = %d, want 403", code)
	}
}
