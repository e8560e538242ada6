package messaging

import (
	"context"
	"testing"

	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/BTreeMap/IntakePipe/internal/whatsapp"
)

func TestWhatsAppService_SendMessageEmitsReceipt(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	if err := svc.SendMessage(context.Background(), "+55 11 98765-4321", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.StatusTypeSent {
			t.Errorf("expected sent status, got %s", receipt.Status)
		}
		if receipt.To != "5511987654321" {
			t.Errorf("expected canonical recipient, got %q", receipt.To)
		}
	default:
		t.Fatal("expected a receipt to be emitted")
	}
}

func TestWhatsAppService_SendMessageDropsReceiptWhenChannelFull(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	for i := 0; i < DefaultChannelBufferSize; i++ {
		svc.emitReceipt(models.Receipt{To: "5511987654321", Status: models.StatusTypeSent})
	}

	// The buffer is full; the send must still return instead of blocking.
	if err := svc.SendMessage(context.Background(), "5511987654321", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWhatsAppService_RecipientValidation(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	tests := []struct {
		name      string
		recipient string
		want      string
		wantErr   bool
	}{
		{"formatted number", "+55 (11) 98765-4321", "5511987654321", false},
		{"bare digits", "5511987654321", "5511987654321", false},
		{"empty", "", "", true},
		{"no digits", "abc", "", true},
		{"too short", "12345", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ValidateAndCanonicalizeRecipient(tt.recipient)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.recipient)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
