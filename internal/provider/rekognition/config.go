package rekognition

// Config holds configuration for the Rekognition quality gate
type Config struct {
	// Region is the AWS region where Rekognition is called (e.g., "us-east-1")
	Region string

	// MinConfidence is the minimum face detection confidence (0-100)
	MinConfidence float64
}

func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		MinConfidence: 90,
	}
}
