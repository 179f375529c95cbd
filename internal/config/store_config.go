package config

import "github.com/spf13/viper"

// StoreConfig locates the credential store data. Empty paths select the
// embedded demo data.
type StoreConfig interface {
	GetUsersFile() string
	GetResourceServersFile() string
}

type Store struct {
	v *viper.Viper
}

var _ StoreConfig = Store{}

func (s Store) GetUsersFile() string {
	return s.v.GetString("store.users_file")
}

func (s Store) GetResourceServersFile() string {
	return s.v.GetString("store.resource_servers_file")
}
