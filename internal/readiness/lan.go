package readiness

import (
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-forensics/internal/inventory"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
	"github.com/nerrad567/gray-logic-forensics/internal/secrets"
)

// LANComponents converts configured LAN components into the static
// descriptions used by the inventory coordinator.
func LANComponents(cfg config.LANConfig) []inventory.LanComponent {
	out := make([]inventory.LanComponent, 0, len(cfg.Components))
	for _, c := range cfg.Components {
		out = append(out, inventory.LanComponent{
			ID:   c.ID,
			Kind: profile.ParseLanKind(c.Kind),
			Params: profile.ConnectionParams{
				Address: c.Address,
				Port:    c.Port,
				Credentials: profile.CredentialRefs{
					Username: secretRef(c.Username),
					Password: secretRef(c.Password),
				},
			},
		})
	}
	return out
}

func secretRef(ref *config.SecretRefConfig) *secrets.Ref {
	if ref == nil {
		return nil
	}
	return &secrets.Ref{ID: ref.ID, Key: ref.Key}
}
