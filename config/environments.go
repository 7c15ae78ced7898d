package config

// Apigee environment groups offered by the deployment form
const (
	EnvironmentGroupDefault = "default"
	EnvironmentGroupEDD     = "edd"
	EnvironmentGroupHomerun = "homerun"
	EnvironmentGroupWow     = "wow"
	EnvironmentGroupWpay    = "wpay"
)

// Apigee environment types offered by the deployment form
const (
	EnvironmentTypeDev     = "dev"
	EnvironmentTypeTestEnv = "test-env"
	EnvironmentTypeTest    = "test"
	EnvironmentTypeUAT     = "uat"
	EnvironmentTypeProd    = "prod"
)

// DefaultProxyDirectory is the bundle directory used when none is given
const DefaultProxyDirectory = "apiproxy"

// EnvironmentGroups returns the environment groups in display order
func EnvironmentGroups() []string {
	return []string{
		EnvironmentGroupDefault,
		EnvironmentGroupEDD,
		EnvironmentGroupHomerun,
		EnvironmentGroupWow,
		EnvironmentGroupWpay,
	}
}

// EnvironmentTypes returns the environment types in display order
func EnvironmentTypes() []string {
	return []string{
		EnvironmentTypeDev,
		EnvironmentTypeTestEnv,
		EnvironmentTypeTest,
		EnvironmentTypeUAT,
		EnvironmentTypeProd,
	}
}

// IsValidEnvironmentGroup checks if the given environment group is known
func IsValidEnvironmentGroup(group string) bool {
	return contains(EnvironmentGroups(), group)
}

// IsValidEnvironmentType checks if the given environment type is known
func IsValidEnvironmentType(envType string) bool {
	return contains(EnvironmentTypes(), envType)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
