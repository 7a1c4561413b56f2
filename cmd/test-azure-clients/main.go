package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/azure"
)

// Smoke-tests the Azure clients against real credentials. Run manually
// before pointing a deployment at a new subscription.
func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Get credentials from environment
	openaiEndpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	openaiKey := os.Getenv("AZURE_OPENAI_API_KEY")
	openaiDeployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")

	storageAccountName := os.Getenv("AZURE_STORAGE_ACCOUNT_NAME")
	storageAccountKey := os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
	reportContainer := os.Getenv("AZURE_STORAGE_REPORT_CONTAINER")
	if reportContainer == "" {
		reportContainer = "therapy-reports"
	}

	if storageAccountName == "" || storageAccountKey == "" {
		logger.Fatal("Missing Azure Storage credentials. Set AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_ACCOUNT_KEY")
	}

	ctx := context.Background()

	// Test 1: Azure Blob Storage Client
	logger.Info("=== Testing Azure Blob Storage Client ===")
	if err := testBlobStorageClient(ctx, storageAccountName, storageAccountKey, reportContainer, logger); err != nil {
		logger.Error("Blob storage client test failed", zap.Error(err))
	} else {
		logger.Info("✅ Blob storage client test passed")
	}

	// Test 2: Azure OpenAI Client (optional)
	if openaiEndpoint == "" || openaiKey == "" || openaiDeployment == "" {
		logger.Info("Azure OpenAI credentials not set, skipping OpenAI test")
	} else {
		logger.Info("=== Testing Azure OpenAI Client ===")
		if err := testOpenAIClient(ctx, openaiEndpoint, openaiKey, openaiDeployment, logger); err != nil {
			logger.Error("OpenAI client test failed", zap.Error(err))
		} else {
			logger.Info("✅ OpenAI client test passed")
		}
	}

	logger.Info("=== All tests completed ===")
}

func testBlobStorageClient(ctx context.Context, accountName, accountKey, container string, logger *zap.Logger) error {
	client, err := azure.NewBlobStorageClient(accountName, accountKey, container, logger)
	if err != nil {
		return fmt.Errorf("failed to create blob storage client: %w", err)
	}

	// Upload a small PDF-shaped payload, read it back, then clean up
	filename := fmt.Sprintf("smoke-test/%d.pdf", time.Now().Unix())
	payload := []byte("%PDF-1.4\n% smoke test payload\n")

	blobPath, err := client.UploadPDF(ctx, filename, payload)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	logger.Info("Uploaded test blob", zap.String("blob_path", blobPath))

	downloaded, err := client.DownloadPDF(ctx, blobPath)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	if len(downloaded) != len(payload) {
		return fmt.Errorf("downloaded %d bytes, uploaded %d", len(downloaded), len(payload))
	}

	if err := client.DeletePrefix(ctx, "reports/smoke-test/"); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	logger.Info("Round trip and cleanup succeeded")

	return nil
}

func testOpenAIClient(ctx context.Context, endpoint, apiKey, deployment string, logger *zap.Logger) error {
	client, err := azure.NewOpenAIClient(endpoint, apiKey, deployment, logger)
	if err != nil {
		return fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	// Exercise the raw completion path the same way guidance generation does
	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String("You are a helpful assistant."),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String("Reply with the single word: ready"),
				},
			},
		},
	}

	response, err := client.Complete(ctx, messages)
	if err != nil {
		return fmt.Errorf("chat completion failed: %w", err)
	}
	logger.Info("OpenAI response received",
		zap.String("response", response),
		zap.Int("response_length", len(response)),
	)

	summary := "Sessions: 4 total, 3 completed, compliance score 75%, consistency streak 2, pain trend improving."
	guidance, err := client.GenerateGuidance(ctx, summary)
	if err != nil {
		return fmt.Errorf("guidance generation failed: %w", err)
	}
	logger.Info("Guidance received", zap.String("guidance", guidance))

	return nil
}
