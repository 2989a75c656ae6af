// Security test helpers: comprehensive test utilities for security module
// testing, eliminating circular dependencies and providing consistent test
// patterns.

package security

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// JWT TEST UTILITIES
// =============================================================================

// TestJWTHandler creates a JWT handler for testing with test secret
func TestJWTHandler(t *testing.T) *JWTHandler {
	logger := logging.GetLogger("test-jwt-handler")
	handler, err := NewJWTHandler("test_secret_key_for_unit_testing_only", logger)
	require.NoError(t, err, "Failed to create test JWT handler")
	return handler
}

// GenerateTestToken creates a test JWT token for authentication testing
func GenerateTestToken(t *testing.T, jwtHandler *JWTHandler, userID string, role string) string {
	token, err := jwtHandler.GenerateToken(userID, role, 24)
	require.NoError(t, err, "Failed to generate test token")
	require.NotEmpty(t, token, "Generated token should not be empty")
	return token
}

// GenerateTestTokenWithExpiry creates a test JWT token with custom expiry
func GenerateTestTokenWithExpiry(t *testing.T, jwtHandler *JWTHandler, userID string, role string, expiryHours int) string {
	token, err := jwtHandler.GenerateToken(userID, role, expiryHours)
	require.NoError(t, err, "Failed to generate test token with expiry")
	require.NotEmpty(t, token, "Generated token should not be empty")
	return token
}

// GenerateExpiredTestToken creates an expired JWT token for testing expiry scenarios
func GenerateExpiredTestToken(t *testing.T, jwtHandler *JWTHandler, userID string, role string) string {
	// Create a token with expiry time in the past (1 hour ago)
	now := time.Now().Unix()
	pastTime := now - 3600 // 1 hour ago

	// Create claims with past expiry
	claims := JWTClaims{
		UserID: userID,
		Role:   role,
		IAT:    now - 7200, // 2 hours ago
		EXP:    pastTime,   // 1 hour ago (expired)
	}

	// Create JWT token manually with past expiry
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": claims.UserID,
		"role":    claims.Role,
		"iat":     claims.IAT,
		"exp":     claims.EXP,
	})

	// Sign with the same secret key as the handler
	secretKey := jwtHandler.GetSecretKey()
	tokenString, err := token.SignedString([]byte(secretKey))
	require.NoError(t, err, "Failed to sign expired test token")
	require.NotEmpty(t, tokenString, "Generated expired token should not be empty")

	return tokenString
}

// =============================================================================
// ROLE AND PERMISSION TEST UTILITIES
// =============================================================================

// TestPermissionChecker creates a permission checker for testing
func TestPermissionChecker(t *testing.T) *PermissionChecker {
	checker := NewPermissionChecker()

	// Add test method permissions
	err := checker.AddMethodPermission("ping", RoleViewer)
	require.NoError(t, err, "Failed to add ping permission")

	err = checker.AddMethodPermission("download_clip", RoleOperator)
	require.NoError(t, err, "Failed to add download_clip permission")

	err = checker.AddMethodPermission("format_storage", RoleAdmin)
	require.NoError(t, err, "Failed to add format_storage permission")

	err = checker.AddMethodPermission("purge_trip_data", RoleAdmin)
	require.NoError(t, err, "Failed to add purge_trip_data permission")

	return checker
}

// TestRoleData provides test role data for consistent testing
type TestRoleData struct {
	Viewer   Role
	Operator Role
	Admin    Role
}

// GetTestRoles returns consistent test role data
func GetTestRoles() TestRoleData {
	return TestRoleData{
		Viewer:   RoleViewer,
		Operator: RoleOperator,
		Admin:    RoleAdmin,
	}
}

// TestUserData provides test user data for consistent testing
type TestUserData struct {
	ViewerUser   string
	OperatorUser string
	AdminUser    string
	InvalidUser  string
}

// GetTestUsers returns consistent test user data
func GetTestUsers() TestUserData {
	return TestUserData{
		ViewerUser:   "test_viewer_user",
		OperatorUser: "test_operator_user",
		AdminUser:    "test_admin_user",
		InvalidUser:  "invalid_user_with_special_chars_!@#$%^&*()",
	}
}

// =============================================================================
// INTEGRATION TEST UTILITIES
// =============================================================================

// TestSecurityEnvironment provides a complete security testing environment
// Following the established pattern used by other security components
type TestSecurityEnvironment struct {
	JWTHandler  *JWTHandler
	RoleManager *PermissionChecker
	Logger      *logging.Logger // Following established pattern: env.Logger
}

// SetupTestSecurityEnvironment creates a complete security test environment
// Following the established pattern used by other security components
func SetupTestSecurityEnvironment(t *testing.T) *TestSecurityEnvironment {
	return &TestSecurityEnvironment{
		JWTHandler:  TestJWTHandler(t),
		RoleManager: TestPermissionChecker(t),
		Logger:      logging.GetLogger("test-security-env"),
	}
}

// TeardownTestSecurityEnvironment cleans up security test environment
func TeardownTestSecurityEnvironment(t *testing.T, env *TestSecurityEnvironment) {
}

// =============================================================================
// VALIDATION TEST UTILITIES
// =============================================================================

// ValidateTestToken validates a test token and returns claims
func ValidateTestToken(t *testing.T, jwtHandler *JWTHandler, token string) *JWTClaims {
	claims, err := jwtHandler.ValidateToken(token)
	require.NoError(t, err, "Failed to validate test token")
	require.NotNil(t, claims, "Token claims should not be nil")
	return claims
}

// =============================================================================
// ERROR TESTING UTILITIES
// =============================================================================

// TestInvalidInputs provides common invalid inputs for negative testing
type TestInvalidInputs struct {
	EmptyString    string
	VeryLongString string
	SpecialChars   string
	UnicodeString  string
}

// GetTestInvalidInputs returns consistent invalid input data
func GetTestInvalidInputs() TestInvalidInputs {
	return TestInvalidInputs{
		EmptyString:    "",
		VeryLongString: strings.Repeat("a", 10000),
		SpecialChars:   "!@#$%^&*()_+-=[]{}|;':\",./<>?",
		UnicodeString:  "æµ‹è¯•ç”¨æˆ·ðŸŽ­ðŸš€ðŸ’»",
	}
}

// =============================================================================
// PERFORMANCE TEST UTILITIES
// =============================================================================

// BenchmarkSecurityOperation runs a security operation benchmark
func BenchmarkSecurityOperation(b *testing.B, operation func()) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		operation()
	}
}

// LoadTestSecurityOperations runs load testing for security operations
func LoadTestSecurityOperations(t *testing.T, operation func(), concurrency int, iterations int) {
	var wg sync.WaitGroup
	errors := make(chan error, concurrency*iterations)

	start := time.Now()

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				func() {
					defer func() {
						if r := recover(); r != nil {
							errors <- fmt.Errorf("panic: %v", r)
						}
					}()
					operation()
				}()
			}
		}()
	}

	wg.Wait()
	close(errors)

	duration := time.Since(start)
	totalOperations := concurrency * iterations

	// Collect errors
	var errorCount int
	for err := range errors {
		errorCount++
		t.Logf("Load test error: %v", err)
	}

	t.Logf("Load test completed: %d operations in %v (%d errors, %.2f ops/sec)",
		totalOperations, duration, errorCount, float64(totalOperations)/duration.Seconds())

	// Fail test if too many errors
	errorRate := float64(errorCount) / float64(totalOperations)
	if errorRate > 0.01 { // 1% error rate threshold
		t.Errorf("Load test error rate too high: %.2f%% (%d/%d)", errorRate*100, errorCount, totalOperations)
	}
}
