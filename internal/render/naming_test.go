package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoName(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"course_name", "CourseName"},
		{"teacher_id", "TeacherID"},
		{"id", "ID"},
		{"api_url", "APIURL"},
		{"hired-on", "HiredOn"},
		{"2fa_code", "X2faCode"},
		{"_id", "ID"},
		{"__", "X"},
		{"createdAt", "CreatedAt"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, GoName(tc.input))
		})
	}
}

func TestTypeName(t *testing.T) {
	testCases := []struct {
		table string
		want  string
	}{
		{"courses", "Course"},
		{"teachers", "Teacher"},
		{"order_items", "OrderItem"},
		{"people", "Person"},
		{"categories", "Category"},
	}
	for _, tc := range testCases {
		t.Run(tc.table, func(t *testing.T) {
			assert.Equal(t, tc.want, TypeName(tc.table))
		})
	}
}

func TestLowerName(t *testing.T) {
	assert.Equal(t, "course", lowerName("Course"))
	assert.Equal(t, "orderItem", lowerName("OrderItem"))
	assert.Equal(t, "cpuUsage", lowerName("CPUUsage"))
	assert.Equal(t, "id", lowerName("ID"))
}

func TestFileBase(t *testing.T) {
	assert.Equal(t, "courses", fileBase("courses"))
	assert.Equal(t, "unit_test_", fileBase("unit_test"))
	assert.Equal(t, "builds_linux_", fileBase("builds_linux"))
	assert.Equal(t, "linux", fileBase("linux"))
	assert.Equal(t, "query_", fileBase("query"))
}
