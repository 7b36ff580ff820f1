package handlers

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	os.Setenv("TM_JWT_SECRET", "test-handlers-jwt-secret-32-chars!!")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}
