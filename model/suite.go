package model

// TestSuite is a generated (or rediscovered) test artifact. It is created
// once per generation attempt and read-only afterwards.
type TestSuite struct {
	// Name of the generator that produced the suite
	GeneratorName string `json:"generator_name"`
	// Directory holding the test files and the branch variants
	Path string `json:"path"`
	// Search path handed to the test runner (PYTHONPATH)
	ClassPath string `json:"class_path"`
	// Test class names (test file names without extension), ordered
	TestClassNames []string `json:"test_classes_names"`
}

// HasTestClass reports whether name is one of the suite's test classes.
func (s TestSuite) HasTestClass(name string) bool {
	for _, c := range s.TestClassNames {
		if c == name {
			return true
		}
	}
	return false
}
